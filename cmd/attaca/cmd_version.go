package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/pkg/version"
)

type versionCmd struct{}

func (c *versionCmd) Run(ctx context.Context) error {
	fmt.Println(version.GetVersionString())
	return nil
}
