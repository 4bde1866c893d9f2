// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/invowk/scriptc/internal/compress"
	"github.com/invowk/scriptc/internal/engine"
)

// envelopeRevision is bumped whenever the envelope layout or the tree
// encoding changes. It feeds the engine version tag.
const envelopeRevision = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

// envelope is the CBOR document stored as an artifact payload.
type envelope struct {
	Revision uint   `cbor:"v"`
	Dialect  string `cbor:"dialect"`
	Name     string `cbor:"name"`
	Codec    uint8  `cbor:"codec"`
	Size     uint64 `cbor:"size"`
	Tree     []byte `cbor:"tree"`
}

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("shell: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("shell: CBOR decoder initialization failed: " + err.Error())
	}
}

// sealTree compresses tree and wraps it into an encoded envelope.
func sealTree(tree []byte, dialect, name string, codec compress.Tag) ([]byte, error) {
	if len(tree) > compress.MaxSize {
		return nil, fmt.Errorf("%w: syntax tree of %d bytes, limit %d", compress.ErrTooLarge, len(tree), compress.MaxSize)
	}
	body, used, err := compress.Compress(tree, codec)
	if err != nil {
		return nil, fmt.Errorf("compressing syntax tree: %w", err)
	}

	return encMode.Marshal(envelope{
		Revision: envelopeRevision,
		Dialect:  dialect,
		Name:     name,
		Codec:    uint8(used),
		Size:     uint64(len(tree)),
		Tree:     body,
	})
}

// openEnvelope decodes payload and returns the envelope with its tree
// decompressed.
func openEnvelope(payload []byte) (envelope, error) {
	var env envelope
	if err := decMode.Unmarshal(payload, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %w", engine.ErrInvalidPayload, err)
	}
	if env.Revision != envelopeRevision {
		return envelope{}, fmt.Errorf("%w: envelope revision %d, want %d",
			engine.ErrInvalidPayload, env.Revision, envelopeRevision)
	}
	codec := compress.Tag(env.Codec)
	if !codec.IsValid() {
		return envelope{}, fmt.Errorf("%w: %w: %d", engine.ErrInvalidPayload, compress.ErrUnknownTag, env.Codec)
	}
	if env.Size > compress.MaxSize {
		return envelope{}, fmt.Errorf("%w: %w: syntax tree of %d bytes", engine.ErrInvalidPayload, compress.ErrTooLarge, env.Size)
	}

	tree, err := compress.Decompress(env.Tree, codec, int(env.Size))
	if err != nil {
		return envelope{}, errors.Join(engine.ErrInvalidPayload, err)
	}
	env.Tree = tree
	return env, nil
}

// PayloadInfo describes a payload produced by a shell engine. TreeSize is
// the uncompressed syntax tree size and StoredSize its size in the payload.
type PayloadInfo struct {
	Dialect     string
	Name        string
	Compression compress.Tag
	TreeSize    uint64
	StoredSize  int
}

// Describe decodes the envelope of payload without parsing the tree.
func Describe(payload []byte) (PayloadInfo, error) {
	env, err := openEnvelope(payload)
	if err != nil {
		return PayloadInfo{}, err
	}
	var stored envelope
	// openEnvelope replaced Tree with the decompressed bytes.
	if err := decMode.Unmarshal(payload, &stored); err != nil {
		return PayloadInfo{}, fmt.Errorf("%w: %w", engine.ErrInvalidPayload, err)
	}
	return PayloadInfo{
		Dialect:     env.Dialect,
		Name:        env.Name,
		Compression: compress.Tag(env.Codec),
		TreeSize:    env.Size,
		StoredSize:  len(stored.Tree),
	}, nil
}
