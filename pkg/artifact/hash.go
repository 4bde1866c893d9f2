// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// DigestSize is the size of a source digest produced by DigestSource.
const DigestSize = 32

type (
	// Digest is a source-domain BLAKE3 keyed hash of script source text.
	Digest [DigestSize]byte

	// domainKey is a 32-byte BLAKE3 key. Each domain yields unrelated hashes
	// for the same input bytes.
	domainKey [32]byte
)

// Domain keys are the ASCII domain name, zero-padded to 32 bytes. Changing a
// key invalidates every hash in its domain.
var (
	sourceDomainKey = domainKey{
		's', 'c', 'r', 'i', 'p', 't', 'c', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
		'.', 's', 'o', 'u', 'r', 'c', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	engineDomainKey = domainKey{
		's', 'c', 'r', 'i', 'p', 't', 'c', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
		'.', 'e', 'n', 'g', 'i', 'n', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// DigestSource hashes script source text for traceability. The digest is
// never needed to execute an artifact.
func DigestSource(source string) Digest {
	return Digest(keyedHash(sourceDomainKey, []byte(source)))
}

// DeriveVersionTag turns an engine build identity (name, library version,
// payload revision, options that change the payload) into a fixed-width tag.
func DeriveVersionTag(identity string) VersionTag {
	sum := keyedHash(engineDomainKey, []byte(identity))
	var tag VersionTag
	copy(tag[:], sum[:VersionTagSize])
	return tag
}

// String returns the lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the digest as a slice suitable for Encode.
func (d Digest) Bytes() []byte {
	return d[:]
}

func keyedHash(key domainKey, data []byte) [32]byte {
	// NewKeyed only fails for keys that are not 32 bytes long.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("artifact: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}
