// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/fatih/color"

	"github.com/secrary/andromeda/log"
)

// Errors
var (
	// ErrNotAnAPK is returned when the input path does not name an .apk
	// archive.
	ErrNotAnAPK = errors.New("not an .apk archive")

	// ErrNoManifest is returned when the archive holds no
	// AndroidManifest.xml.
	ErrNoManifest = errors.New("AndroidManifest.xml not found in archive")

	// ErrNoDexFound is returned when the archive holds no executable image.
	ErrNoDexFound = errors.New("no dex image found in archive")
)

const manifestMember = "AndroidManifest.xml"

// A File represents an open application archive.
type File struct {
	Manifest    *Manifest
	Cert        *Certificate
	Dexes       []*Dex
	UnpackDir   string
	MemberPaths []string

	path    string
	data    mmap.MMap
	f       *os.File
	dexMaps []mmap.MMap
	dexFds  []*os.File
	opts    *Options
	logger  *log.Helper
}

// Options for parsing.
type Options struct {

	// Skip dex images; the archive, the certificate and the manifest are
	// still parsed.
	Fast bool

	// Skip the META-INF signing block.
	DisableCertParse bool

	// A custom logger.
	Logger log.Logger
}

// New instantiates a file instance with options given an archive path.
// The archive is memory mapped; Close releases the mapping.
func New(name string, opts *Options) (*File, error) {
	if !strings.EqualFold(filepath.Ext(name), ".apk") {
		return nil, ErrNotAnAPK
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := File{path: name, data: data, f: f}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}

	var logger log.Logger
	if file.opts.Logger == nil {
		logger = log.NewStdLogger(os.Stderr)
		file.logger = log.NewHelper(log.NewFilter(logger,
			log.FilterLevel(log.LevelError)))
	} else {
		file.logger = log.NewHelper(file.opts.Logger)
	}

	return &file, nil
}

// Close releases the mappings and file handles.
func (a *File) Close() error {
	for _, m := range a.dexMaps {
		_ = m.Unmap()
	}
	for _, fd := range a.dexFds {
		_ = fd.Close()
	}
	if a.data != nil {
		_ = a.data.Unmap()
	}
	if a.f != nil {
		return a.f.Close()
	}
	return nil
}

// Parse unpacks the archive next to the source file, decodes the manifest,
// reads the signing certificate and opens every top-level dex image.
func (a *File) Parse() error {
	if err := a.extract(); err != nil {
		return err
	}

	if !a.opts.DisableCertParse {
		cert, err := NewCertificate(filepath.Join(a.UnpackDir, "META-INF"))
		if err != nil {
			a.logger.Warnf("certificate parsing failed: %v", err)
		} else {
			a.Cert = cert
		}
	}

	manifestPath := filepath.Join(a.UnpackDir, manifestMember)
	manifestData, err := ioutil.ReadFile(manifestPath)
	if err != nil {
		return ErrNoManifest
	}
	manifest, err := NewManifest(manifestData)
	if err != nil {
		return fmt.Errorf("manifest decoding failed: %w", err)
	}
	a.Manifest = manifest

	if a.opts.Fast {
		return nil
	}

	for _, member := range a.MemberPaths {
		if strings.Contains(member, "/") || !strings.HasSuffix(member, ".dex") {
			continue
		}
		if err := a.openDex(filepath.Join(a.UnpackDir, member), member); err != nil {
			a.logger.Errorf("dex %s parsing failed: %v", member, err)
		}
	}
	if len(a.Dexes) == 0 {
		return ErrNoDexFound
	}
	return nil
}

func (a *File) openDex(path, member string) error {
	fd, err := os.Open(path)
	if err != nil {
		return err
	}
	m, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		fd.Close()
		return err
	}

	dex, err := NewDex(member, m, a.logger)
	if err != nil {
		_ = m.Unmap()
		fd.Close()
		return err
	}
	a.dexFds = append(a.dexFds, fd)
	a.dexMaps = append(a.dexMaps, m)
	a.Dexes = append(a.Dexes, dex)
	return nil
}

// extract unpacks every archive member under "<archive>_unpacked",
// recording member paths.
func (a *File) extract() error {
	reader, err := zip.NewReader(bytes.NewReader(a.data), int64(len(a.data)))
	if err != nil {
		return err
	}

	unpackDir := a.path + "_unpacked"
	if err := os.RemoveAll(unpackDir); err != nil {
		return err
	}
	if err := os.MkdirAll(unpackDir, 0755); err != nil {
		return err
	}
	a.UnpackDir = unpackDir

	for _, member := range reader.File {
		a.MemberPaths = append(a.MemberPaths, member.Name)
		if member.FileInfo().IsDir() {
			continue
		}

		dest := filepath.Join(unpackDir, filepath.FromSlash(member.Name))
		if !strings.HasPrefix(dest, filepath.Clean(unpackDir)+string(os.PathSeparator)) {
			a.logger.Warnf("skipping member escaping the archive root: %s", member.Name)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := extractMember(member, dest); err != nil {
			color.New(color.FgHiRed).Printf("Failed to unpack file: %s\n", member.Name)
		}
	}
	return nil
}

func extractMember(member *zip.File, dest string) error {
	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// Output colors of the interactive session.
var (
	headingColor = color.New(color.FgHiBlack)
	entryColor   = color.New(color.FgGreen)
	labelColor   = color.New(color.FgWhite)
	okColor      = color.New(color.FgHiGreen)
	failColor    = color.New(color.FgHiRed)
)

// DumpClasses prints every class of every image.
func (a *File) DumpClasses() {
	for _, dex := range a.Dexes {
		classes, err := dex.Classes()
		if err != nil {
			a.logger.Errorf("classes of %s: %v", dex.Name(), err)
			continue
		}
		if len(classes) == 0 {
			continue
		}
		headingColor.Printf("DEX file: %s\n", dex.Name())
		for _, class := range classes {
			entryColor.Printf("\t%s\n", class)
		}
	}
}

// FindClass prints classes whose name contains part, ignoring case.
func (a *File) FindClass(part string) {
	for _, dex := range a.Dexes {
		classes, err := dex.Classes()
		if err != nil {
			continue
		}
		for _, class := range classes {
			if findCaseInsensitive(class, part) {
				headingColor.Printf("DEX file: %s\n", dex.Name())
				entryColor.Printf("\t%s\n", class)
			}
		}
	}
}

// DumpMethods prints every method of every image.
func (a *File) DumpMethods() {
	for _, dex := range a.Dexes {
		methods := dex.Methods()
		if len(methods) == 0 {
			continue
		}
		headingColor.Printf("DEX file: %s\n", dex.Name())
		for _, m := range methods {
			headingColor.Printf("%s.", m.ParentDecl)
			entryColor.Printf("%s\n", m.Name)
		}
	}
}

// FindMethod prints methods whose name contains part, ignoring case.
func (a *File) FindMethod(part string) {
	for _, dex := range a.Dexes {
		for _, m := range dex.Methods() {
			if findCaseInsensitive(m.Name, part) {
				headingColor.Printf("DEX file: %s\n", dex.Name())
				headingColor.Printf("%s.", m.ParentDecl)
				entryColor.Printf("%s\n", m.Name)
			}
		}
	}
}

// DumpClassMethods prints the methods of one class across all images.
func (a *File) DumpClassMethods(classPath string) {
	found := false
	labelColor.Printf("Class: %s\n", classPath)
	for _, dex := range a.Dexes {
		methods := dex.ClassMethods(classPath)
		if len(methods) == 0 {
			continue
		}
		headingColor.Printf("DEX file: %s\n", dex.Name())
		for _, m := range methods {
			entryColor.Printf("\t%s\n", m)
			found = true
		}
	}
	if !found {
		failColor.Println("Failed to locate a class")
	}
}

// DisasmMethod disassembles the method with the given dotted path.
func (a *File) DisasmMethod(methodPath string) {
	found := false
	for _, dex := range a.Dexes {
		if dex.Disassemble(methodPath, os.Stdout, CfgNone) {
			found = true
		}
	}
	if !found {
		failColor.Printf("Failed to locate method: %s\n", methodPath)
	}
}

// DumpStrings prints the constant-pool strings of every image.
func (a *File) DumpStrings() {
	for _, dex := range a.Dexes {
		strs := dex.Strings()
		if len(strs) == 0 {
			continue
		}
		headingColor.Printf("DEX file: %s\n", dex.Name())
		for _, s := range strs {
			entryColor.Printf("\t%s\n", s)
		}
	}
}

// DumpInterestingStrings prints constant-pool strings that look like URLs
// or email addresses.
func (a *File) DumpInterestingStrings() {
	var urls, emails []string
	for _, dex := range a.Dexes {
		for _, s := range dex.Strings() {
			if IsURL(s) {
				urls = append(urls, s)
			}
			if IsEmail(s) {
				emails = append(emails, s)
			}
		}
	}

	if len(urls) > 0 {
		headingColor.Println("URLs:")
		for _, u := range urls {
			entryColor.Printf("\t%s\n", u)
		}
	}
	if len(emails) > 0 {
		headingColor.Println("e-Mails:")
		for _, e := range emails {
			entryColor.Printf("\t%s\n", e)
		}
	}
}

// SearchString prints constant-pool strings containing target, ignoring
// case.
func (a *File) SearchString(target string) {
	for _, dex := range a.Dexes {
		for _, s := range dex.Strings() {
			if findCaseInsensitive(s, target) {
				headingColor.Printf("%s: ", dex.Name())
				entryColor.Printf("%s\n", s)
			}
		}
	}
}

// DumpPermissions prints the permissions requested by the manifest.
func (a *File) DumpPermissions() {
	if len(a.Manifest.Permissions) == 0 {
		return
	}
	headingColor.Println("Permissions:")
	for _, perm := range a.Manifest.Permissions {
		entryColor.Printf("\t%s\n", perm)
	}
}

// DumpActivities prints the declared activities.
func (a *File) DumpActivities() {
	a.dumpComponents("Activities:", a.Manifest.Activities, false)
}

// DumpServices prints the declared services.
func (a *File) DumpServices() {
	a.dumpComponents("Services:", a.Manifest.Services, false)
}

// DumpReceivers prints the declared broadcast receivers.
func (a *File) DumpReceivers() {
	a.dumpComponents("Receivers:", a.Manifest.Receivers, false)
}

func (a *File) dumpComponents(heading string, components []Component, intents bool) {
	if len(components) == 0 {
		return
	}
	headingColor.Println(heading)
	for _, c := range components {
		entryColor.Printf("\t%s\n", c.Name)
		if intents && len(c.Intents) > 0 {
			headingColor.Println("\t\tIntents:")
			for _, intent := range c.Intents {
				fmt.Printf("\t\t%s\n", intent)
			}
		}
	}
}

// DumpEntryPoints prints the application class and the main activity; the
// extended form also lists every component with its intent filters.
func (a *File) DumpEntryPoints(extended bool) {
	m := a.Manifest
	if m.ApplicationClass != "" {
		labelColor.Print("Application class name:\n\t")
		entryColor.Printf("%s\n", m.ApplicationClass)
	}
	if main := m.MainActivity(); main != "" {
		labelColor.Print("Main activity:\n\t")
		entryColor.Printf("%s\n", main)
	}
	if !extended {
		return
	}

	a.dumpComponents("Activities:", m.Activities, true)
	a.dumpComponents("Services:", m.Services, true)
	a.dumpComponents("Receivers:", m.Receivers, true)
}

// DumpIsDebuggable prints the manifest debuggable verdict.
func (a *File) DumpIsDebuggable() {
	if a.Manifest.IsDebuggable() {
		okColor.Println("Yes")
	} else {
		failColor.Println("No")
	}
}

// DumpManifest prints the decoded manifest XML.
func (a *File) DumpManifest() {
	okColor.Println("----------- BEGIN -----------")
	fmt.Println(a.Manifest.Content)
	okColor.Println("----------- EOF -----------")
}

// DumpCertificate prints the root signer summary.
func (a *File) DumpCertificate() {
	if a.Cert == nil {
		failColor.Println("No certificate found")
		return
	}
	okColor.Println("----------- BEGIN -----------")
	fmt.Println(a.Cert.Text())
	okColor.Println("----------- EOF -----------")
}

// DumpCreationDate prints the start of the signer validity window.
func (a *File) DumpCreationDate() {
	if a.Cert == nil {
		failColor.Println("No certificate found")
		return
	}
	fmt.Println(a.Cert.CreationDate())
}

// DumpRevokeDate prints the end of the signer validity window.
func (a *File) DumpRevokeDate() {
	if a.Cert == nil {
		failColor.Println("No certificate found")
		return
	}
	fmt.Println(a.Cert.RevokeDate())
}

// Libs enumerates native library members. With extract set the members are
// written under ./libs; a non-empty target restricts extraction to one
// library path; withHash prints a SHA-1 digest per extracted file.
func (a *File) Libs(extract bool, target string, withHash bool) []string {
	if withHash {
		extract = true
	}

	reader, err := zip.NewReader(bytes.NewReader(a.data), int64(len(a.data)))
	if err != nil {
		a.logger.Errorf("reopening archive: %v", err)
		return nil
	}

	destDir := filepath.Join(".", "libs")
	var libs []string
	for _, member := range reader.File {
		if member.FileInfo().IsDir() || !strings.HasPrefix(member.Name, "lib/") {
			continue
		}
		libPath := member.Name[len("lib/"):]
		if libPath == "" {
			continue
		}

		if !extract {
			libs = append(libs, libPath)
			continue
		}
		if target != "" && target != libPath {
			continue
		}

		dest := filepath.Join(destDir, filepath.FromSlash(member.Name))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			failColor.Printf("Failed to unpack file: %s\n", member.Name)
			continue
		}
		if err := extractMember(member, dest); err != nil {
			failColor.Printf("Failed to unpack file: %s\n", member.Name)
			continue
		}

		if withHash {
			content, err := ioutil.ReadFile(dest)
			if err != nil {
				continue
			}
			entryColor.Printf("%s: ", member.Name)
			headingColor.Printf("%x\n", sha1.Sum(content))
		} else {
			entryColor.Printf("unpacked lib: %s\n", dest)
		}
	}
	return libs
}

// DumpLanguage prints the language the application was written in, based
// on archive member heuristics.
func (a *File) DumpLanguage() {
	lang := "Java"
	printColor := failColor
	for _, member := range a.MemberPaths {
		if strings.HasPrefix(member, "kotlin/") {
			lang = "Kotlin"
			printColor = color.New(color.FgCyan)
			break
		}
		if strings.HasPrefix(member, "assemblies/Xamarin.") {
			lang = ".NET (Xamarin)"
			printColor = color.New(color.FgBlue)
			break
		}
	}
	printColor.Printf("%s\n", lang)
}
