package common

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	snowflakeNode *snowflake.Node
	snowflakeOnce sync.Once
)

func getSnowflakeNode() *snowflake.Node {
	snowflakeOnce.Do(func() {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(fmt.Sprintf("snowflake node init failed: %v", err))
		}
		snowflakeNode = node
	})
	return snowflakeNode
}

// UUIDint64 returns a time-ordered unique int64 id.
func UUIDint64() int64 {
	return getSnowflakeNode().Generate().Int64()
}

// UUID returns the base32 string form of a snowflake id.
func UUID() string {
	return getSnowflakeNode().Generate().Base32()
}

// Sha256HashWithSalt hashes src with the given salt.
func Sha256HashWithSalt(src string, salt string) string {
	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}

// GetSecretSalt returns the process salt, overridable via environment.
func GetSecretSalt() string {
	if s := os.Getenv("WAGATE_SECRET_SALT"); s != "" {
		return s
	}
	return "wagate-secret"
}

// RandomToken returns a hex token of n random bytes, usable as an
// instance API bearer token.
func RandomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// fall back to a snowflake-derived token, still unique
		return Sha256HashWithSalt(UUID(), GetSecretSalt())[:n*2]
	}
	return hex.EncodeToString(buf)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
