package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/kysee/maci-voter-core/ballot"
	"github.com/kysee/maci-voter-core/eddsa"
	"github.com/kysee/maci-voter-core/field"
	"github.com/kysee/maci-voter-core/internal/config"
	"github.com/kysee/maci-voter-core/keyderivation"
	"github.com/kysee/maci-voter-core/message"
	"github.com/kysee/maci-voter-core/publisher"
	"github.com/kysee/maci-voter-core/secretstore"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

func main() {
	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: maci-vote <vote|key-change|register|generate-key> [flags...]")
	}
	cmd := os.Args[1]

	switch cmd {
	case "vote":
		if len(os.Args) < 4 {
			log.Fatal().Msg("usage: maci-vote vote <choice> <weight> [flags...]")
		}
		choice, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatal().Err(err).Msg("parsing choice")
		}
		weight, err := strconv.ParseUint(os.Args[3], 10, 64)
		if err != nil {
			log.Fatal().Err(err).Msg("parsing weight")
		}
		cfg := config.NewConfig(os.Args[4:]...)
		if err := runVote(cfg, choice, weight); err != nil {
			log.Fatal().Err(err).Msg("vote failed")
		}
	case "key-change":
		cfg := config.NewConfig(os.Args[2:]...)
		if err := runKeyChange(cfg); err != nil {
			log.Fatal().Err(err).Msg("key change failed")
		}
	case "register":
		cfg := config.NewConfig(os.Args[2:]...)
		if err := runRegister(cfg); err != nil {
			log.Fatal().Err(err).Msg("registration failed")
		}
	case "generate-key":
		cfg := config.NewConfig(os.Args[2:]...)
		if err := runGenerateKey(cfg); err != nil {
			log.Fatal().Err(err).Msg("generating identity key failed")
		}
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command")
	}
}

// voterAddress is the owner_address spec.md §4.11 requires:
// secretstore's encryption key derives from it, never from a
// passphrase, since it is already public (it signs the voter's
// on-chain transactions).
func voterAddress(cfg *config.Config) (common.Address, error) {
	if cfg.VoterAddress == "" {
		return common.Address{}, fmt.Errorf("--voter-address (or MACI_VOTER_ADDRESS) is required")
	}
	return common.HexToAddress(cfg.VoterAddress), nil
}

func runGenerateKey(cfg *config.Config) error {
	owner, err := voterAddress(cfg)
	if err != nil {
		return err
	}

	var seed [32]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return fmt.Errorf("drawing identity seed: %w", err)
	}

	store := secretstore.NewStore(secretstore.NewFileBackend(cfg.SecretStorePath))
	if err := store.Put("voter-identity", seed[:], owner); err != nil {
		return fmt.Errorf("persisting identity key: %w", err)
	}

	pk, err := eddsa.Prv2Pub(seed)
	if err != nil {
		return fmt.Errorf("deriving public key: %w", err)
	}
	log.Info().Str("pubkey_x", pk.X.String()).Str("pubkey_y", pk.Y.String()).Msg("identity key generated")
	return nil
}

func loadVoterSecretKey(cfg *config.Config, owner common.Address) (eddsa.PrivateKeySeed, error) {
	store := secretstore.NewStore(secretstore.NewFileBackend(cfg.SecretStorePath))

	raw, ok, err := store.Load("voter-identity", owner)
	if err != nil {
		return eddsa.PrivateKeySeed{}, err
	}
	if !ok {
		return eddsa.PrivateKeySeed{}, fmt.Errorf("no identity key found at %s; generate one before voting", cfg.SecretStorePath)
	}
	if len(raw) != 32 {
		return eddsa.PrivateKeySeed{}, fmt.Errorf("stored identity key has wrong length %d", len(raw))
	}

	var sk eddsa.PrivateKeySeed
	copy(sk[:], raw)
	return sk, nil
}

func buildRNG(cfg *config.Config) (keyderivation.RNGSource, error) {
	switch cfg.RNGSource {
	case "system", "":
		return keyderivation.SystemRNG{}, nil
	case "seeded":
		seed, err := fieldElementBytes(cfg.RNGSeedHex)
		if err != nil {
			return nil, fmt.Errorf("parsing rng seed: %w", err)
		}
		return keyderivation.SeededRNG{Seed: seed}, nil
	default:
		return nil, fmt.Errorf("unknown rng_source %q", cfg.RNGSource)
	}
}

func fieldElementBytes(hexStr string) ([]byte, error) {
	if hexStr == "" {
		return nil, nil
	}
	b, ok := new(big.Int).SetString(strings.TrimPrefix(hexStr, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value %q", hexStr)
	}
	return b.Bytes(), nil
}

func coordinatorPubKey(cfg *config.Config) (babyjub.Point, error) {
	x, ok := new(big.Int).SetString(cfg.CoordPubKeyX, 10)
	if !ok {
		return babyjub.Point{}, fmt.Errorf("invalid coordinator pubkey x %q", cfg.CoordPubKeyX)
	}
	y, ok := new(big.Int).SetString(cfg.CoordPubKeyY, 10)
	if !ok {
		return babyjub.Point{}, fmt.Errorf("invalid coordinator pubkey y %q", cfg.CoordPubKeyY)
	}
	return babyjub.Point{X: field.NewFromBigInt(x), Y: field.NewFromBigInt(y)}, nil
}

func ballotKey(cfg *config.Config, owner common.Address) ballot.Key {
	return ballot.Key{
		Proposal: common.HexToAddress(cfg.PollAddress),
		Voter:    owner,
		PollID:   0,
	}
}

// runRegister submits the voter's identity key through Publisher.SignUp
// and persists the state index the external registration log assigns
// (spec.md §4.10).
func runRegister(cfg *config.Config) error {
	owner, err := voterAddress(cfg)
	if err != nil {
		return err
	}
	voterSK, err := loadVoterSecretKey(cfg, owner)
	if err != nil {
		return fmt.Errorf("loading voter identity key: %w", err)
	}
	voterPK, err := eddsa.Prv2Pub(voterSK)
	if err != nil {
		return fmt.Errorf("deriving voter public key: %w", err)
	}

	pub := publisher.NewMock()
	ctx := context.Background()
	stateIndex, err := pub.SignUp(ctx, voterPK.X, voterPK.Y, nil, nil)
	if err != nil {
		return fmt.Errorf("registering voter: %w", err)
	}

	store := ballot.NewStore(ballot.NewFileBackend(cfg.BallotStorePath))
	key := ballotKey(cfg, owner)
	if err := store.Mutate(key, func(r *ballot.Record) error {
		return r.ApplyStateIndex(stateIndex)
	}); err != nil {
		return fmt.Errorf("committing assigned state index: %w", err)
	}

	log.Info().Uint64("state_index", stateIndex).Msg("voter registered")
	return nil
}

func runVote(cfg *config.Config, choice, weight uint64) error {
	owner, err := voterAddress(cfg)
	if err != nil {
		return err
	}
	voterSK, err := loadVoterSecretKey(cfg, owner)
	if err != nil {
		return fmt.Errorf("loading voter identity key: %w", err)
	}
	voterPK, err := eddsa.Prv2Pub(voterSK)
	if err != nil {
		return fmt.Errorf("deriving voter public key: %w", err)
	}
	coordPK, err := coordinatorPubKey(cfg)
	if err != nil {
		return err
	}
	rngSource, err := buildRNG(cfg)
	if err != nil {
		return err
	}

	store := ballot.NewStore(ballot.NewFileBackend(cfg.BallotStorePath))
	key := ballotKey(cfg, owner)
	rec := store.Get(key)
	if rec.StateIndex == nil {
		return fmt.Errorf("voter is not registered; run 'maci-vote register' first")
	}

	proposal := message.Proposal{CoordPubKey: coordPK, StateIndex: *rec.StateIndex, PollID: key.PollID}
	b := message.Ballot{NextNonce: rec.NextNonce, BoundPublicKey: voterPK}

	res, err := message.BuildVoteMessage(proposal, voterSK, b, choice, weight, cfg.VoiceCreditBudget, rngSource.Reader())
	if err != nil {
		return fmt.Errorf("assembling vote message: %w", err)
	}

	pub := publisher.NewMock()
	ctx := context.Background()
	if _, err := pub.PublishMessage(ctx, key.Proposal, res.Encrypted.EncMessage, res.Encrypted.EncPubKeyX, res.Encrypted.EncPubKeyY); err != nil {
		return fmt.Errorf("publishing vote: %w", err)
	}

	if err := store.Mutate(key, func(r *ballot.Record) error {
		return r.ApplyVote(res.Ballot.NextNonce, ballot.VoteSummary{
			Choice: res.LastVote.Choice, Weight: res.LastVote.Weight, Cost: res.LastVote.Cost,
		})
	}); err != nil {
		return fmt.Errorf("committing ballot state: %w", err)
	}

	log.Info().Uint64("choice", choice).Uint64("weight", weight).Msg("vote published")
	return nil
}

func runKeyChange(cfg *config.Config) error {
	owner, err := voterAddress(cfg)
	if err != nil {
		return err
	}
	voterSK, err := loadVoterSecretKey(cfg, owner)
	if err != nil {
		return fmt.Errorf("loading voter identity key: %w", err)
	}
	voterPK, err := eddsa.Prv2Pub(voterSK)
	if err != nil {
		return fmt.Errorf("deriving voter public key: %w", err)
	}
	coordPK, err := coordinatorPubKey(cfg)
	if err != nil {
		return err
	}
	rngSource, err := buildRNG(cfg)
	if err != nil {
		return err
	}

	store := ballot.NewStore(ballot.NewFileBackend(cfg.BallotStorePath))
	key := ballotKey(cfg, owner)
	rec := store.Get(key)
	if rec.StateIndex == nil {
		return fmt.Errorf("voter is not registered; run 'maci-vote register' first")
	}

	proposal := message.Proposal{CoordPubKey: coordPK, StateIndex: *rec.StateIndex, PollID: key.PollID}
	b := message.Ballot{NextNonce: rec.NextNonce, BoundPublicKey: voterPK}

	res, err := message.BuildKeyChangeMessage(proposal, voterSK, b, rngSource.Reader())
	if err != nil {
		return fmt.Errorf("assembling key-change message: %w", err)
	}

	newStore := secretstore.NewStore(secretstore.NewFileBackend(cfg.SecretStorePath))
	if err := newStore.Put("voter-identity", res.NewSecretKey[:], owner); err != nil {
		return fmt.Errorf("persisting new identity key: %w", err)
	}

	pub := publisher.NewMock()
	ctx := context.Background()
	if _, err := pub.PublishMessage(ctx, key.Proposal, res.Encrypted.EncMessage, res.Encrypted.EncPubKeyX, res.Encrypted.EncPubKeyY); err != nil {
		return fmt.Errorf("publishing key change: %w", err)
	}

	if err := store.Mutate(key, func(r *ballot.Record) error {
		return r.ApplyKeyChange(res.Ballot.NextNonce, res.Ballot.BoundPublicKey)
	}); err != nil {
		return fmt.Errorf("committing ballot state: %w", err)
	}

	log.Info().Msg("identity key changed and published")
	return nil
}
