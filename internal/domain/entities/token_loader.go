package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const maxDecimals = 77

// TokenConfig represents token configuration from JSON
type TokenConfig struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// TokensConfig represents the tokens.json structure
type TokensConfig struct {
	Tokens []TokenConfig `json:"tokens"`
}

// ToToken converts the JSON form into a Token
func (tc TokenConfig) ToToken() (Token, error) {
	if !common.IsHexAddress(tc.Address) {
		return Token{}, fmt.Errorf("invalid token address %q", tc.Address)
	}
	if tc.Decimals > maxDecimals {
		return Token{}, fmt.Errorf("token %s: decimals %d out of range", tc.Address, tc.Decimals)
	}
	return Token{
		Address:  common.HexToAddress(tc.Address),
		Symbol:   tc.Symbol,
		Name:     tc.Name,
		Decimals: tc.Decimals,
	}, nil
}

// TokenRegistry holds known tokens indexed by address and symbol
type TokenRegistry struct {
	mu        sync.RWMutex
	byAddress map[common.Address]Token
	bySymbol  map[string]Token
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		byAddress: make(map[common.Address]Token),
		bySymbol:  make(map[string]Token),
	}
}

// LoadFromFile registers the tokens listed in a JSON file of the form
// {"tokens": [...]}.
func (r *TokenRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token config: %w", err)
	}

	var config TokensConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse token config %s: %w", path, err)
	}
	return r.RegisterConfigs(config.Tokens)
}

// RegisterConfigs validates every entry before registering any of them.
// A symbol may not be reused for a different address, either within the
// batch or against tokens already registered.
func (r *TokenRegistry) RegisterConfigs(configs []TokenConfig) error {
	tokens := make([]Token, 0, len(configs))
	seen := make(map[string]common.Address, len(configs))
	for _, tc := range configs {
		token, err := tc.ToToken()
		if err != nil {
			return err
		}
		if token.Symbol != "" {
			key := strings.ToUpper(token.Symbol)
			if prev, ok := seen[key]; ok && prev != token.Address {
				return fmt.Errorf("symbol %s listed for %s and %s", token.Symbol, prev.Hex(), token.Address.Hex())
			}
			if prev, ok := r.GetBySymbol(key); ok && prev.Address != token.Address {
				return fmt.Errorf("symbol %s already registered for %s", token.Symbol, prev.Address.Hex())
			}
			seen[key] = token.Address
		}
		tokens = append(tokens, token)
	}

	for _, token := range tokens {
		r.Register(token)
	}
	return nil
}

// Register adds a token to the registry. Symbols are matched case-insensitively.
func (r *TokenRegistry) Register(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddress[token.Address] = token
	if token.Symbol != "" {
		r.bySymbol[strings.ToUpper(token.Symbol)] = token
	}
}

// GetByAddress returns a token by its address
func (r *TokenRegistry) GetByAddress(addr common.Address) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.byAddress[addr]
	return token, ok
}

// GetBySymbol returns a token by its symbol
func (r *TokenRegistry) GetBySymbol(symbol string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.bySymbol[strings.ToUpper(symbol)]
	return token, ok
}

// Lookup accepts either a hex address or a registered symbol. Unregistered
// addresses resolve to the placeholder token.
func (r *TokenRegistry) Lookup(s string) (Token, bool) {
	if common.IsHexAddress(s) {
		return r.Resolve(common.HexToAddress(s)), true
	}
	return r.GetBySymbol(s)
}

// LookupPath converts a path of addresses or symbols
func (r *TokenRegistry) LookupPath(items []string) (Path, error) {
	path := make(Path, 0, len(items))
	for _, item := range items {
		token, ok := r.Lookup(item)
		if !ok {
			return nil, fmt.Errorf("unknown token %q", item)
		}
		path = append(path, token.Address)
	}
	return path, nil
}

// Resolve returns the registered token or an 18-decimal placeholder
func (r *TokenRegistry) Resolve(addr common.Address) Token {
	if token, ok := r.GetByAddress(addr); ok {
		return token
	}
	return Token{Address: addr, Symbol: "UNKNOWN", Decimals: 18}
}

// Count returns the number of registered tokens
func (r *TokenRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddress)
}

// DefaultRegistry returns a registry seeded with the BSC tokens the
// default config trades
func DefaultRegistry() *TokenRegistry {
	r := NewTokenRegistry()
	r.Register(WBNB)
	r.Register(BUSD)
	r.Register(USDT)
	r.Register(AMES)
	return r
}
