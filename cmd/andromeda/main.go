// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	andromeda "github.com/secrary/andromeda"
)

func main() {

	var rootCmd = &cobra.Command{
		Use:   "andromeda apk_file_path",
		Short: "Interactive reverse engineering tool for Android applications",
		Long:  "Andromeda - Interactive Reverse Engineering Tool for Android Applications",
		Args:  cobra.MinimumNArgs(1),
		Run:   run,
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 1.0.0")
		},
	}

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	clearScreen()
	color.New(color.FgHiRed).Print("A n d r o m e d a ")
	color.New(color.FgHiCyan).Print(" - Interactive Reverse Engineering Tool for Android Applications\n\n")

	path := args[0]
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("Invalid file path: %s\n", path)
		os.Exit(1)
	}

	apk, err := andromeda.New(path, &andromeda.Options{})
	if err != nil {
		fmt.Printf("Failed to open APK file: %v\n", err)
		os.Exit(1)
	}
	defer apk.Close()

	if err := apk.Parse(); err != nil {
		fmt.Printf("Failed to parse APK file: %v\n", err)
		os.Exit(1)
	}

	if err := repl(apk); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	color.New(color.FgHiGreen).Println("----------- EOF -----------")
}

func clearScreen() {
	fmt.Print("\033[2J\033[1;1H")
}
