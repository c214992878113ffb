// Core datatypes for exohost
package exotypes

import (
	"errors"
)

// hash fields of an asset record in the registry store. the record is keyed by
// asset ID; its existence is defined solely by a non-empty "file" field.
const (
	FieldFile      = "file"
	FieldViews     = "views"
	FieldDownloads = "downloads"
	FieldScore     = "score"
	FieldTitle     = "title"
	FieldOwner     = "owner"
	FieldSize      = "size"
	FieldDate      = "date"
)

var ErrAssetNotFound = errors.New("asset not found")

// optional caller-supplied fields attached to an asset at creation
type AssetFields struct {
	Title string
	Owner string
}

type AssetStatistics struct {
	Views     int64 `json:"views"`
	Downloads int64 `json:"downloads"`
	Size      int64 `json:"size"`
	Date      int64 `json:"date"` // creation time, epoch milliseconds
}
