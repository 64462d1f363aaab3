package web3

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainTypeEVM 是目前唯一支持的链类型，留空时按 evm 处理。
const ChainTypeEVM = "evm"

// ChainDefinitions 对应 configs/chain.yaml 的顶层结构。
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition 描述一条可用于共识锚定或凭证发放的链。
type ChainDefinition struct {
	Type          string `yaml:"type"`
	RPCURL        string `yaml:"rpc_url"`
	ChainID       int64  `yaml:"chain_id"`
	PrivateKeyEnv string `yaml:"private_key_env"`
	ExplorerURL   string `yaml:"explorer_url"`
	Description   string `yaml:"description"`
}

// KeyEnv 返回签名私钥所在的环境变量名，未单独配置时使用 fallback。
func (d ChainDefinition) KeyEnv(fallback string) string {
	if env := strings.TrimSpace(d.PrivateKeyEnv); env != "" {
		return env
	}
	return fallback
}

func (d *ChainDefinition) normalize() {
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
	if d.Type == "" {
		d.Type = ChainTypeEVM
	}
	d.RPCURL = strings.TrimSpace(d.RPCURL)
	d.ExplorerURL = strings.TrimSpace(d.ExplorerURL)
}

func (d ChainDefinition) validate(name string) error {
	switch {
	case d.Type != ChainTypeEVM:
		return fmt.Errorf("链 %s 使用了不支持的类型 %s", name, d.Type)
	case d.RPCURL == "":
		return fmt.Errorf("链 %s 缺少 rpc_url", name)
	case d.ChainID < 0:
		return fmt.Errorf("链 %s 的 chain_id 不能为负数", name)
	}
	return nil
}

// Names 返回按字母序排列的链名称。
func (d ChainDefinitions) Names() []string {
	names := make([]string, 0, len(d.Chains))
	for name := range d.Chains {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadChainDefinitions 读取并校验链配置。path 为空时返回空集合，
// 调用方可以退回到单一 RPC 端点。
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	defs := ChainDefinitions{Chains: map[string]ChainDefinition{}}
	if strings.TrimSpace(path) == "" {
		return defs, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}

	var errs []error
	for _, name := range defs.Names() {
		def := defs.Chains[name]
		def.normalize()
		if err := def.validate(name); err != nil {
			errs = append(errs, err)
			continue
		}
		defs.Chains[name] = def
	}
	if err := errors.Join(errs...); err != nil {
		return ChainDefinitions{}, err
	}
	return defs, nil
}
