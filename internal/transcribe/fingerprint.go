package transcribe

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultSampleBytes is the size of each head/tail slice fed to Fingerprint.
const DefaultSampleBytes = 4096

// Fingerprint derives the cache key for a clip.
//
// Only the first and last sample bytes are hashed, together with the total
// length, encoding and language, so the cost is constant in payload size.
// Two different recordings with identical length, head and tail would
// collide; for a best-effort cache in front of live speech that risk is
// accepted in exchange for never hashing multi-megabyte uploads.
func Fingerprint(clip AudioClip, sample int) string {
	if sample <= 0 {
		sample = DefaultSampleBytes
	}
	d := xxhash.New()

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(clip.Data)))
	d.Write(n[:])
	d.WriteString(string(clip.Encoding))
	d.Write([]byte{0})
	d.WriteString(clip.Language)
	d.Write([]byte{0})

	if len(clip.Data) <= 2*sample {
		d.Write(clip.Data)
	} else {
		d.Write(clip.Data[:sample])
		d.Write(clip.Data[len(clip.Data)-sample:])
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
