// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"errors"

	"go.mozilla.org/pkcs7"
)

// ErrNotSigned is returned by VerifySignature when the envelope does not
// carry a PKCS7 signed-data structure over the supplied classfile bytes.
var ErrNotSigned = errors.New("jclass: signature does not cover the supplied classfile bytes")

// WriteSigned serializes c and wraps the resulting bytes in a detached
// PKCS#7 signed-data envelope, for distribution pipelines that want
// tamper-evidence around emitted classfiles. The JVM classfile format has
// no native signature slot (unlike a PE's certificate table, which
// parseSecurityDirectory in this repo's teacher lineage reads back out of
// the image itself), so the signature travels alongside the class bytes
// rather than inside them: callers ship (class, signature) as a pair.
func WriteSigned(c *Classfile, signer crypto.Signer, cert *x509.Certificate) (classBytes, signature []byte, err error) {
	classBytes, err = c.Bytes()
	if err != nil {
		return nil, nil, err
	}

	sd, err := pkcs7.NewSignedData(classBytes)
	if err != nil {
		return nil, nil, err
	}
	sd.Detach()

	signerKey, ok := signer.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, errors.New("jclass: WriteSigned currently supports RSA signers only")
	}
	if err := sd.AddSigner(cert, signerKey, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, nil, err
	}

	signature, err = sd.Finish()
	if err != nil {
		return nil, nil, err
	}
	return classBytes, signature, nil
}

// VerifySignature checks that signature is a valid detached PKCS#7
// signature over classBytes, and that the signing certificate chains to
// one of the roots in pool.
func VerifySignature(classBytes, signature []byte, pool *x509.CertPool) error {
	p7, err := pkcs7.Parse(signature)
	if err != nil {
		return err
	}
	p7.Content = classBytes
	if err := p7.VerifyWithChain(pool); err != nil {
		return err
	}
	return nil
}
