package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixComposition = "comp"
	PrefixSegment     = "seg"
	PrefixLayer       = "layer"
	PrefixSnapshot    = "snap"
	PrefixAsset       = "asset"
	PrefixExport      = "exp"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewCompositionID() string { return New(PrefixComposition) }
func NewSegmentID() string     { return New(PrefixSegment) }
func NewLayerID() string       { return New(PrefixLayer) }
func NewSnapshotID() string    { return New(PrefixSnapshot) }
func NewAssetID() string       { return New(PrefixAsset) }
func NewExportID() string      { return New(PrefixExport) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
