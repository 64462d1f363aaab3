package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"ProofFlow-Chain/internal/config"
	"ProofFlow-Chain/internal/web3"
	"ProofFlow-Chain/internal/web3/ethereum"
)

const defaultPrivateKeyEnv = "PROOFFLOW_PRIVATE_KEY"

// Registry manages a set of chain transactors keyed by human readable names.
type Registry struct {
	defaultChain string
	clients      map[string]*ethereum.Transactor
	explorers    map[string]string
}

// NewRegistry loads chain definitions and instantiates concrete transactors.
func NewRegistry(ctx context.Context, cfg config.Web3Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	keyEnv := strings.TrimSpace(cfg.PrivateKeyEnv)
	if keyEnv == "" {
		keyEnv = defaultPrivateKeyEnv
	}

	r := &Registry{
		clients:   make(map[string]*ethereum.Transactor),
		explorers: make(map[string]string),
	}
	for _, name := range defs.Names() {
		chain := defs.Chains[name]
		client, err := ethereum.Dial(ctx, ethereum.Config{
			Name:          name,
			RPCURL:        chain.RPCURL,
			ChainID:       chain.ChainID,
			PrivateKeyHex: os.Getenv(chain.KeyEnv(keyEnv)),
			Notes:         chain.Description,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
		}
		r.clients[name] = client
		r.explorers[name] = chain.ExplorerURL
	}

	if len(r.clients) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		client, err := ethereum.Dial(ctx, ethereum.Config{
			Name:          "default",
			RPCURL:        cfg.RPCURL,
			ChainID:       cfg.ChainID,
			PrivateKeyHex: os.Getenv(keyEnv),
		})
		if err != nil {
			return nil, err
		}
		r.clients["default"] = client
		if cfg.DefaultChain == "" {
			cfg.DefaultChain = "default"
		}
	}

	if len(r.clients) == 0 {
		return nil, errors.New("未配置任何链的 RPC 端点")
	}

	r.defaultChain = cfg.DefaultChain
	if r.defaultChain == "" {
		r.defaultChain = r.Chains()[0]
	}
	if _, ok := r.clients[r.defaultChain]; !ok {
		r.Close()
		return nil, fmt.Errorf("默认链 %s 未在配置中找到", cfg.DefaultChain)
	}
	return r, nil
}

// Resolve returns the named transactor, or the default one when name is empty.
func (r *Registry) Resolve(name string) (*ethereum.Transactor, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	if strings.TrimSpace(name) == "" {
		name = r.defaultChain
	}
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("链 %s 未在注册表中", name)
	}
	return client, nil
}

// ExplorerURL returns the explorer template configured for the chain.
func (r *Registry) ExplorerURL(name string) string {
	if r == nil {
		return ""
	}
	if strings.TrimSpace(name) == "" {
		name = r.defaultChain
	}
	return r.explorers[name]
}

// Snapshots collects chain metadata from every registered transactor.
func (r *Registry) Snapshots(ctx context.Context) ([]web3.ChainSnapshot, error) {
	if r == nil {
		return nil, nil
	}
	var errs []error
	out := make([]web3.ChainSnapshot, 0, len(r.clients))
	for _, name := range r.Chains() {
		snap, err := r.clients[name].Snapshot(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out = append(out, snap)
	}
	return out, errors.Join(errs...)
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}

// Chains returns the list of registered chain names.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
