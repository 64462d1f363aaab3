package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashContent 返回内容的 SHA-256 十六进制摘要。
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// RootHash 对按顺序拼接的步骤哈希再做一次 SHA-256。
// 这是扁平的 hash-of-hashes，不是 Merkle 树。
func RootHash(steps []Step) string {
	var builder strings.Builder
	builder.Grow(len(steps) * sha256.Size * 2)
	for _, step := range steps {
		builder.WriteString(step.Hash)
	}
	return HashContent(builder.String())
}
