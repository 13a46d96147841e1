// Package config holds the flat, environment-and-flag configuration
// surface cmd/maci-vote wires into the rest of the core, following the
// teacher's own provers/types/config.go NewConfig(args...)/getEnv
// pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the MACI voter core's runtime configuration.
type Config struct {
	// RPCEndpoint is the Ethereum JSON-RPC endpoint used to publish
	// messages and observe signup events.
	RPCEndpoint string
	// PollAddress is the poll contract this voter is casting votes
	// against.
	PollAddress string

	// CoordPubKeyX, CoordPubKeyY are the coordinator's Baby Jubjub
	// encryption public key coordinates, as decimal strings.
	CoordPubKeyX string
	CoordPubKeyY string

	// VoiceCreditBudget is the per-voter total voice credit budget.
	VoiceCreditBudget uint64
	// MessageTreeDepth bounds how many messages a poll will accept;
	// carried through for callers that need to size a local buffer,
	// not enforced by the crypto core itself.
	MessageTreeDepth uint64

	// RNGSource selects "system" (crypto/rand, the only production-safe
	// choice) or "seeded" (deterministic, test-only).
	RNGSource string
	// RNGSeedHex is the hex-encoded seed used when RNGSource is "seeded".
	RNGSeedHex string

	// SecretStorePath is the on-disk path for the voter's encrypted
	// identity key file.
	SecretStorePath string
	// BallotStorePath is the on-disk path for this voter's persisted
	// ballot state (next_nonce, bound_pk, state_index, last_vote),
	// keyed per spec.md §6 as ballot:<poll>:<voter>.
	BallotStorePath string
	// VoterAddress is the voter's Ethereum wallet address — the
	// owner_address spec.md §4.11 requires secretstore's encryption key
	// to derive from. It is public (it signs the voter's on-chain
	// transactions), so the store only prevents casual inspection of
	// the identity-key file on disk, never a motivated attacker.
	VoterAddress string
}

// NewConfig parses configuration from environment variables, then
// applies any `--flag value` pairs in args as overrides.
func NewConfig(args ...string) *Config {
	cfg := &Config{
		RPCEndpoint:       getEnv("MACI_RPC_ENDPOINT", "http://localhost:8545"),
		PollAddress:       getEnv("MACI_POLL_ADDRESS", ""),
		CoordPubKeyX:      getEnv("MACI_COORD_PUBKEY_X", "0"),
		CoordPubKeyY:      getEnv("MACI_COORD_PUBKEY_Y", "1"),
		VoiceCreditBudget: getEnvUint("MACI_VOICE_CREDIT_BUDGET", 100),
		MessageTreeDepth:  getEnvUint("MACI_MESSAGE_TREE_DEPTH", 10),
		RNGSource:         getEnv("MACI_RNG_SOURCE", "system"),
		RNGSeedHex:        getEnv("MACI_RNG_SEED", ""),
		SecretStorePath:   getEnv("MACI_SECRET_STORE_PATH", "./maci-secrets.json"),
		BallotStorePath:   getEnv("MACI_BALLOT_STORE_PATH", "./maci-ballots.json"),
		VoterAddress:      getEnv("MACI_VOTER_ADDRESS", ""),
	}

	for i := 0; i < len(args); i++ {
		if len(args) <= i+1 {
			panic(fmt.Errorf("missing argument for %s", args[i]))
		}

		switch args[i] {
		case "--rpc":
			cfg.RPCEndpoint = args[i+1]
			i++
		case "--poll":
			cfg.PollAddress = args[i+1]
			i++
		case "--coord-pubkey-x":
			cfg.CoordPubKeyX = args[i+1]
			i++
		case "--coord-pubkey-y":
			cfg.CoordPubKeyY = args[i+1]
			i++
		case "--voice-credit-budget":
			v, _ := strconv.ParseUint(args[i+1], 10, 64)
			cfg.VoiceCreditBudget = v
			i++
		case "--message-tree-depth":
			v, _ := strconv.ParseUint(args[i+1], 10, 64)
			cfg.MessageTreeDepth = v
			i++
		case "--rng-source":
			cfg.RNGSource = args[i+1]
			i++
		case "--rng-seed":
			cfg.RNGSeedHex = args[i+1]
			i++
		case "--secret-store":
			cfg.SecretStorePath = args[i+1]
			i++
		case "--ballot-store":
			cfg.BallotStorePath = args[i+1]
			i++
		case "--voter-address":
			cfg.VoterAddress = args[i+1]
			i++
		}
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
