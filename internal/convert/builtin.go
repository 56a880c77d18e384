package convert

import (
	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/profq/internal/profile/field"
)

// Codec names understood by the built-in converters.
const (
	CodecText = "text"
	CodecTSDB = "tsdb"
	CodecNFC  = "nfc"
	CodecNFD  = "nfd"
	CodecNFKC = "nfkc"
)

func init() {
	Register(CodecText, CodecTSDB, Func(func(s string) (string, error) {
		return field.Escape(s), nil
	}))
	Register(CodecTSDB, CodecText, Func(func(s string) (string, error) {
		return field.Unescape(s), nil
	}))

	for codec, form := range map[string]norm.Form{
		CodecNFC:  norm.NFC,
		CodecNFD:  norm.NFD,
		CodecNFKC: norm.NFKC,
	} {
		Register(CodecText, codec, normalizer(form))
	}
}

func normalizer(form norm.Form) Converter {
	return Func(func(s string) (string, error) {
		return form.String(s), nil
	})
}
