package main

import (
	"fmt"
	"os"

	"github.com/ostafen/binwalk/cmd/cmd"
	"github.com/ostafen/binwalk/internal/env"
)

func main() {
	PrintLogo()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func PrintLogo() {
	fmt.Println(" _     _                     _ _    ")
	fmt.Println("| |__ (_)_ ____      ____ _| | | __")
	fmt.Println("| '_ \\| | '_ \\ \\ /\\ / / _` | | |/ /")
	fmt.Println("| |_) | | | | \\ V  V / (_| | |   < ")
	fmt.Println("|_.__/|_|_| |_|\\_/\\_/ \\__,_|_|_|\\_\\")
	fmt.Println()
	fmt.Println("Firmware analysis and extraction tool")
	fmt.Println()
	fmt.Printf("Version:   %s\n", env.Version)
	fmt.Printf("Commit:    %s\n", env.CommitHash)
	fmt.Printf("Build Time: %s\n", env.BuildTime)
	fmt.Println(" ")
}
