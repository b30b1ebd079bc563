package utils

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var idCounter uint32

// GenerateID returns a 12-byte ObjectID-like string (24 hex characters).
// The leading 4 bytes are the unix timestamp, so ids sort by creation
// time; used for connection identities and artifact filenames.
func GenerateID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(time.Now().Unix()))
	_, _ = rand.Read(b[4:9])
	c := atomic.AddUint32(&idCounter, 1) % 0xFFFFFF
	b[9] = byte(c >> 16)
	b[10] = byte(c >> 8)
	b[11] = byte(c)
	return hex.EncodeToString(b[:])
}

// TimestampPrefix returns an 8-char hex unix timestamp followed by an
// underscore, e.g. "68ac1b2f_". Filenames carrying this prefix can be
// age-checked without a stat call.
func TimestampPrefix() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(time.Now().Unix()))
	return hex.EncodeToString(b) + "_"
}

// TimeFromID extracts the creation time from a string starting with an
// 8-char hex timestamp (both "68ac1b2f..." and "68ac1b2f_..." work).
func TimeFromID(id string) (time.Time, error) {
	if len(id) < 8 {
		return time.Time{}, fmt.Errorf("id too short: %d", len(id))
	}
	b, err := hex.DecodeString(id[:8])
	if err != nil {
		return time.Time{}, err
	}
	sec := binary.BigEndian.Uint32(b)
	return time.Unix(int64(sec), 0), nil
}

// IsOlderThan reports whether the id's embedded timestamp is more than
// d in the past. Unparseable ids are never considered old.
func IsOlderThan(id string, d time.Duration) bool {
	t, err := TimeFromID(id)
	if err != nil {
		return false
	}
	return time.Since(t) > d
}
