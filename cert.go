// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"go.mozilla.org/pkcs7"
)

// Errors
var (
	// ErrNoCertificate is returned when META-INF holds no parsable signing
	// block.
	ErrNoCertificate = errors.New("no signing certificate found")
)

// CertInfo keeps the important fields of the signer certificate.
type CertInfo struct {
	Issuer             string
	Subject            string
	NotBefore          time.Time
	NotAfter           time.Time
	SerialNumber       string
	SignatureAlgorithm x509.SignatureAlgorithm
	PublicKeyAlgorithm x509.PublicKeyAlgorithm
}

// Certificate is the root signer extracted from the archive's PKCS#7
// signature block.
type Certificate struct {
	Info CertInfo
	Raw  []byte
}

var certExtensions = []string{".RSA", ".DSA", ".EC"}

// NewCertificate scans dir for a signature block (.RSA, .DSA or .EC member
// of META-INF), parses it and keeps the last certificate of the chain, the
// root signer.
func NewCertificate(dir string) (*Certificate, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !stringInSlice(filepath.Ext(entry.Name()), certExtensions) {
			continue
		}

		data, err := ioutil.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		p7, err := pkcs7.Parse(data)
		if err != nil || len(p7.Certificates) == 0 {
			continue
		}

		root := p7.Certificates[len(p7.Certificates)-1]
		return &Certificate{Info: certInfoFromX509(root), Raw: root.Raw}, nil
	}

	return nil, ErrNoCertificate
}

func certInfoFromX509(cert *x509.Certificate) CertInfo {
	return CertInfo{
		Issuer:             renderName(cert.Issuer),
		Subject:            renderName(cert.Subject),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		SerialNumber:       hex.EncodeToString(cert.SerialNumber.Bytes()),
		SignatureAlgorithm: cert.SignatureAlgorithm,
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm,
	}
}

func renderName(name pkix.Name) string {
	var parts []string
	if len(name.Country) > 0 {
		parts = append(parts, name.Country[0])
	}
	if len(name.Province) > 0 {
		parts = append(parts, name.Province[0])
	}
	if len(name.Locality) > 0 {
		parts = append(parts, name.Locality[0])
	}
	if len(name.Organization) > 0 {
		parts = append(parts, name.Organization[0])
	}
	parts = append(parts, name.CommonName)
	return strings.Join(parts, ", ")
}

const certTimeLayout = "Jan _2 15:04:05 2006 MST"

// Text renders a summary of the root signer.
func (c *Certificate) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Certificate:\n")
	fmt.Fprintf(&b, "    Serial Number: %s\n", c.Info.SerialNumber)
	fmt.Fprintf(&b, "    Signature Algorithm: %s\n", c.Info.SignatureAlgorithm)
	fmt.Fprintf(&b, "    Issuer: %s\n", c.Info.Issuer)
	fmt.Fprintf(&b, "    Validity\n")
	fmt.Fprintf(&b, "        Not Before: %s\n", c.Info.NotBefore.Format(certTimeLayout))
	fmt.Fprintf(&b, "        Not After : %s\n", c.Info.NotAfter.Format(certTimeLayout))
	fmt.Fprintf(&b, "    Subject: %s\n", c.Info.Subject)
	fmt.Fprintf(&b, "    Public Key Algorithm: %s\n", c.Info.PublicKeyAlgorithm)
	return b.String()
}

// CreationDate is the start of the signer's validity window.
func (c *Certificate) CreationDate() string {
	return c.Info.NotBefore.Format(certTimeLayout)
}

// RevokeDate is the end of the signer's validity window.
func (c *Certificate) RevokeDate() string {
	return c.Info.NotAfter.Format(certTimeLayout)
}
