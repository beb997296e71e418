// mapsign is the signing tool for map content: it generates keypairs, signs
// map files, and verifies detached signatures. It is the producing side of
// the closed trust chain that signed maps verify against.
package main

import (
	"flag"
	"fmt"
	"os"

	"refmap/internal/keysig"
	"refmap/internal/logging"
)

func main() {
	logging.Init(os.Getenv("MAPSIGN_LOG"), "text")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = cmdKeygen(os.Args[2:])
	case "sign":
		err = cmdSign(os.Args[2:])
	case "verify":
		err = cmdVerify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mapsign: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  mapsign keygen -out <prefix>
  mapsign sign   -key <private.pem> -in <file> -out <sigfile> [-force]
  mapsign verify -key <public> -in <file> -sig <sigfile>`)
}

func cmdKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "map", "output path prefix (<prefix>.key, <prefix>.pub)")
	fs.Parse(args)

	pub, priv, err := keysig.GenerateKey()
	if err != nil {
		return err
	}

	privPEM, err := priv.EncodePEM()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out+".key", privPEM, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	pubPEM, err := pub.EncodePEM()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out+".pub", pubPEM, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	// The base32 form is what map configurations carry as trusted_key.
	fmt.Printf("private key: %s.key\npublic key:  %s.pub\ntrusted_key: %s\n",
		*out, *out, pub.Encode())
	return nil
}

func cmdSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyPath := fs.String("key", "", "private key (PEM)")
	in := fs.String("in", "", "file to sign")
	out := fs.String("out", "", "signature output path")
	force := fs.Bool("force", false, "overwrite an existing signature file")
	fs.Parse(args)
	if *keyPath == "" || *in == "" || *out == "" {
		return fmt.Errorf("sign: -key, -in and -out are required")
	}

	priv, err := keysig.LoadPrivateKeyFile(*keyPath)
	if err != nil {
		return err
	}
	sig, err := keysig.SignFile(priv, *in)
	if err != nil {
		return err
	}
	if err := sig.Save(*out, *force); err != nil {
		return err
	}
	fmt.Printf("signed %s -> %s\n", *in, *out)
	return nil
}

func cmdVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	keyPath := fs.String("key", "", "public key (PEM or base32 file)")
	in := fs.String("in", "", "file to verify")
	sigPath := fs.String("sig", "", "detached signature file")
	fs.Parse(args)
	if *keyPath == "" || *in == "" || *sigPath == "" {
		return fmt.Errorf("verify: -key, -in and -sig are required")
	}

	pub, err := keysig.LoadPublicKeyFile(*keyPath)
	if err != nil {
		return err
	}
	sig, err := keysig.LoadSignature(*sigPath)
	if err != nil {
		return err
	}
	ok, err := keysig.VerifyFile(pub, sig, *in)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("signature does not match %s", *in)
	}
	fmt.Printf("verified %s\n", *in)
	return nil
}
