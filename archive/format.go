package archive

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	// FormatVersion is the container version written by Pack.
	FormatVersion = 1

	magic     = "MBND"
	headerLen = len(magic) + 1
)

// body is the CBOR-encoded part of a bundle.
type body struct {
	Name   string      `cbor:"1,keyasint"`
	Assets []wireAsset `cbor:"2,keyasint"`
}

type wireAsset struct {
	Name        string `cbor:"1,keyasint"`
	Type        string `cbor:"2,keyasint"`
	Compression uint8  `cbor:"3,keyasint"`
	Size        uint64 `cbor:"4,keyasint"`
	Hash        []byte `cbor:"5,keyasint"`
	Data        []byte `cbor:"6,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("archive: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 20,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("archive: CBOR decoder initialization failed: " + err.Error())
	}
}

func encode(b *body) ([]byte, error) {
	enc, err := encMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	out := make([]byte, 0, headerLen+len(enc))
	out = append(out, magic...)
	out = append(out, FormatVersion)
	return append(out, enc...), nil
}

func decode(data []byte) (*body, error) {
	if len(data) < headerLen || !bytes.Equal(data[:len(magic)], []byte(magic)) {
		return nil, ErrInvalidBundle
	}
	if v := data[len(magic)]; v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	var b body
	if err := decMode.Unmarshal(data[headerLen:], &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	return &b, nil
}
