package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// readPassphrase returns the passphrase from passwordFile if set, otherwise
// prompts on stdin. Vaults hold no terminal-echo-suppression dependency in
// the pack, so the prompt falls back to a plain bufio read.
func readPassphrase(passwordFile, prompt string) (string, error) {
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
