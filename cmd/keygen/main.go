package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/codebay/backend/pkg/utils/sshkeygen"
)

func main() {
	var keyPath string
	flag.StringVar(&keyPath, "path", "", "private key path (default ~/.ssh/id_ed25519)")
	flag.Parse()

	if keyPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		keyPath = filepath.Join(homeDir, ".ssh", "id_ed25519")
	}
	publicKeyPath := keyPath + ".pub"

	fmt.Printf("Generating Ed25519 SSH key pair...\n")
	fmt.Printf("Private key: %s\n", keyPath)
	fmt.Printf("Public key: %s\n", publicKeyPath)

	if err := sshkeygen.GenerateEd25519KeyPair(keyPath, publicKeyPath); err != nil {
		log.Fatalf("Failed to generate key pair: %v", err)
	}

	fmt.Printf("Done\n")
}
