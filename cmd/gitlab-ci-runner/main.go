package main

import "github.com/davarch/gitlab-ci-runner/cmd/gitlab-ci-runner/cli"

func main() {
	cli.Execute()
}
