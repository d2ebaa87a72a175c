package main

import "github.com/shouni/aihubmix-image-kit/internal/cli"

func main() {
	cli.Execute()
}
