package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint 原始字节的 SHA-256 十六进制摘要，作为简历 ID
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// JobFingerprint 去除首尾空白后的 JD 摘要
func JobFingerprint(jobDescription string) string {
	return Fingerprint([]byte(strings.TrimSpace(jobDescription)))
}
