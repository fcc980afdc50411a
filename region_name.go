package herald

import (
	"crypto/rand"
)

const (
	regionNameLength = 32
	regionNameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// nextRegionID generates a 32-character name drawn uniformly from
// [A-Za-z0-9], matching the 62-character alphabet and length spec.md §4.3
// requires for the shared-mapping identifier. Collisions across concurrent
// subscribers are astronomically unlikely (62^32 possibilities); no
// retry-on-collision is performed, per spec.
func nextRegionID() (string, error) {
	// Bytes at or above the largest multiple of the alphabet size that fits
	// in a byte are discarded, so the modulo below favours no character.
	limit := 256 - 256%len(regionNameAlphabet)

	raw := make([]byte, regionNameLength)
	id := make([]byte, 0, regionNameLength)
	for len(id) < regionNameLength {
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		for _, b := range raw {
			if int(b) < limit && len(id) < regionNameLength {
				id = append(id, regionNameAlphabet[int(b)%len(regionNameAlphabet)])
			}
		}
	}
	return string(id), nil
}
