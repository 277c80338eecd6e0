package data

import "embed"

var (
	//go:embed captchad.yaml
	Config embed.FS
)
