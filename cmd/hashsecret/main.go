// Package main prints the bcrypt hash of an admin secret, for use as ADMIN_SECRET_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	secret := flag.Arg(0)
	if secret == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("failed to read secret from stdin: %v", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}
	if secret == "" {
		log.Fatal("usage: hashsecret [-cost N] <secret>, or pipe the secret on stdin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), *cost)
	if err != nil {
		log.Fatalf("failed to hash secret: %v", err)
	}
	fmt.Println(string(hash))
}
