// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	andromeda "github.com/secrary/andromeda"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("manifest"),
	readline.PcItem("is_debuggable"),
	readline.PcItem("entry_points"),
	readline.PcItem("ep"),
	readline.PcItem("entry_points_extended"),
	readline.PcItem("epe"),
	readline.PcItem("permissions"),
	readline.PcItem("perms"),
	readline.PcItem("activities"),
	readline.PcItem("services"),
	readline.PcItem("receivers"),
	readline.PcItem("classes"),
	readline.PcItem("class_info"),
	readline.PcItem("class"),
	readline.PcItem("find_class"),
	readline.PcItem("methods"),
	readline.PcItem("funcs"),
	readline.PcItem("find_method"),
	readline.PcItem("find_func"),
	readline.PcItem("disassemble"),
	readline.PcItem("dis"),
	readline.PcItem("certificate"),
	readline.PcItem("creation_date"),
	readline.PcItem("revoke_date"),
	readline.PcItem("libs"),
	readline.PcItem("dump_libs"),
	readline.PcItem("dump_lib"),
	readline.PcItem("libs_hash"),
	readline.PcItem("libh"),
	readline.PcItem("strings"),
	readline.PcItem("strs"),
	readline.PcItem("interesting_strings"),
	readline.PcItem("string"),
	readline.PcItem("str"),
	readline.PcItem("language"),
	readline.PcItem("lang"),
	readline.PcItem("cls"),
	readline.PcItem("clr"),
	readline.PcItem("clear"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func helpCommands() {
	heading := color.New(color.FgYellow)
	verb := color.New(color.FgHiGreen)

	heading.Println("Commands:")

	fmt.Println()
	verb.Print("entry_points [ep]")
	fmt.Println(" - print list of entry points [LIMITED]")
	verb.Print("entry_points_extended [epe]")
	fmt.Println(" - print all possible entry points")

	fmt.Println()
	verb.Print("permissions [perms]")
	fmt.Println(" - permissions requested by the APK file")
	verb.Print("activities")
	fmt.Println(" - names of activities contained in the APK file")
	verb.Print("services")
	fmt.Println(" - names of services contained in the APK file")
	verb.Print("receivers")
	fmt.Println(" - names of handlers declared in the APK file for receiving broadcasts")

	fmt.Println()
	verb.Print("classes")
	fmt.Println(" - print all classes from APK file")
	verb.Print("class_info [class] class_path")
	fmt.Println(" - print list of methods from a class")
	verb.Print("find_class _str_")
	fmt.Println(" - find a class which contains _str_ string")

	fmt.Println()
	verb.Print("methods [funcs]")
	fmt.Println(" - print all methods from APK file")
	verb.Print("disassemble [dis] method_path")
	fmt.Println(" - disassemble a method")
	verb.Print("find_method [find_func] _str_")
	fmt.Println(" - find a method which contains _str_ string")

	fmt.Println()
	verb.Print("manifest")
	fmt.Println(" - print content of AndroidManifest.xml file")
	verb.Print("is_debuggable")
	fmt.Println(" - checks android:debuggable field of AndroidManifest.xml file")
	verb.Print("certificate")
	fmt.Println(" - print content of root certificate")
	verb.Print("creation_date")
	fmt.Println(" - print creation date of the application based on a certificate")
	verb.Print("revoke_date")
	fmt.Println(" - print end of the certificate validity window")

	fmt.Println()
	verb.Print("libs")
	fmt.Println(" - print list of native library files")
	verb.Print("dump_libs")
	fmt.Println(" - write all lib files to disk")
	verb.Print("dump_lib lib_path")
	fmt.Println(" - write 'lib_path' file to disk")
	verb.Print("libs_hash [libh]")
	fmt.Println(" - SHA-1 hashes of lib files")

	fmt.Println()
	verb.Print("strings [strs]")
	fmt.Println(" - print the strings of APK (thanks to Strings Constant Pool)")
	verb.Print("string [str] search_string")
	fmt.Println(" - find \"search_string\" in the strings of APK")
	verb.Print("interesting_strings")
	fmt.Println(" - interesting/suspicious strings from the APK file")

	fmt.Println()
	verb.Print("language [lang]")
	fmt.Println(" - print a language used to write the application")

	fmt.Println()
	verb.Print("cls [clr]")
	fmt.Println(": clear screen")
	verb.Println("\nexit/quit")
	fmt.Println()
}

func repl(apk *andromeda.File) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Andromeda> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	invalid := color.New(color.FgRed)
	invalidArg := color.New(color.FgHiRed)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		verb, arg := splitLine(line)
		switch verb {
		case "?", "help":
			helpCommands()

		case "manifest":
			apk.DumpManifest()
		case "is_debuggable":
			apk.DumpIsDebuggable()
		case "ep", "entry_points":
			apk.DumpEntryPoints(false)
		case "epe", "entry_points_extended":
			apk.DumpEntryPoints(true)
		case "permissions", "perms":
			apk.DumpPermissions()
		case "activities":
			apk.DumpActivities()
		case "services":
			apk.DumpServices()
		case "receivers":
			apk.DumpReceivers()

		case "classes":
			apk.DumpClasses()
		case "class", "class_info":
			if arg == "" {
				invalidArg.Println("Invalid class path")
				continue
			}
			apk.DumpClassMethods(arg)
		case "find_class":
			if arg != "" {
				apk.FindClass(arg)
			}

		case "methods", "funcs":
			apk.DumpMethods()
		case "find_method", "find_func":
			if arg != "" {
				apk.FindMethod(arg)
			}
		case "dis", "disassemble":
			if arg == "" {
				invalidArg.Println("Invalid method path")
				continue
			}
			apk.DisasmMethod(arg)

		case "certificate":
			apk.DumpCertificate()
		case "creation_date":
			apk.DumpCreationDate()
		case "revoke_date":
			apk.DumpRevokeDate()

		case "libs":
			libs := apk.Libs(false, "", false)
			if len(libs) > 0 {
				color.New(color.FgHiBlack).Println("Libs:")
				for _, lib := range libs {
					color.New(color.FgGreen).Printf("\t%s\n", lib)
				}
			}
		case "dump_libs":
			apk.Libs(true, "", false)
		case "dump_lib":
			if arg != "" {
				apk.Libs(true, arg, false)
			}
		case "libs_hash", "libh":
			apk.Libs(true, "", true)

		case "strings", "strs":
			apk.DumpStrings()
		case "interesting_strings":
			apk.DumpInterestingStrings()
		case "str", "string":
			if arg != "" {
				apk.SearchString(arg)
			}

		case "language", "lang":
			apk.DumpLanguage()

		case "cls", "clr", "clear":
			clearScreen()

		default:
			invalid.Printf("Invalid command: %s\n", line)
			helpCommands()
		}
	}
}

func splitLine(line string) (string, string) {
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}
