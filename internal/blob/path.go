package blob

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectPath builds the storage path the server validates row-level access
// against: <channel_id>/<user_id>/<timestamp>-<random>.<ext>. The uploader
// must match the path's user segment and the channel must match its channel
// segment.
func ObjectPath(channelID, userID uuid.UUID, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	base := fmt.Sprintf("%s/%s/%d-%s", channelID, userID, time.Now().UnixMilli(), randomSuffix())
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// ParseObjectPath splits a storage path back into its channel and user
// segments.
func ParseObjectPath(path string) (channelID, userID uuid.UUID, err error) {
	parts := strings.SplitN(path, "/", 3)
	if len(parts) != 3 {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed storage path %q", path)
	}
	channelID, err = uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed channel segment in %q: %w", path, err)
	}
	userID, err = uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed user segment in %q: %w", path, err)
	}
	return channelID, userID, nil
}

func randomSuffix() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString([]byte(fmt.Sprint(time.Now().UnixNano())))[:12]
	}
	return hex.EncodeToString(buf[:])
}
