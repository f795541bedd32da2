package data

import (
	_ "embed"
)

// Keywords is the default ordered keyword table document used by the classifier
//
//go:embed keywords.yaml
var Keywords []byte
