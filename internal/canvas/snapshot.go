package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	"inkquiry/internal/domain"
)

// ErrInvalidSnapshot is returned for snapshots that are missing, malformed
// or not decodable into an image.
var ErrInvalidSnapshot = errors.New("invalid canvas snapshot")

const pngDataURLPrefix = "data:image/png;base64,"

// EncodeSnapshot encodes img as a PNG data URL.
func EncodeSnapshot(img image.Image) (domain.Snapshot, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return domain.Snapshot(pngDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// DecodeSnapshot parses an image data URL ("data:image/<type>;base64,...").
func DecodeSnapshot(snap domain.Snapshot) (image.Image, error) {
	data, err := snapshotBytes(snap)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ErrInvalidSnapshot, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidSnapshot)
	}
	return img, nil
}

// ValidateSnapshot checks that snap is a well-formed, decodable image data URL.
func ValidateSnapshot(snap domain.Snapshot) error {
	_, err := DecodeSnapshot(snap)
	return err
}

// SnapshotFromPNG wraps raw PNG bytes as a snapshot after validating them.
func SnapshotFromPNG(data []byte) (domain.Snapshot, error) {
	snap := domain.Snapshot(pngDataURLPrefix + base64.StdEncoding.EncodeToString(data))
	if err := ValidateSnapshot(snap); err != nil {
		return "", err
	}
	return snap, nil
}

func snapshotBytes(snap domain.Snapshot) ([]byte, error) {
	if snap.IsZero() {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSnapshot)
	}
	header, payload, ok := strings.Cut(string(snap), ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: not an image data URL", ErrInvalidSnapshot)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidSnapshot, err)
	}
	return data, nil
}
