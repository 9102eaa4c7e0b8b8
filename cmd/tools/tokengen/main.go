package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"repfinds.local/internal/platform/auth"
	"repfinds.local/internal/platform/config"
)

// 用法: go run ./cmd/tools/tokengen <subject> [ttl]
// 签发 admin 角色的 token，密钥和 issuer 取自 JWT_SECRET / JWT_ISSUER
func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		log.Fatal("usage: go run ./cmd/tools/tokengen <subject> [ttl]")
	}
	cfg := config.Load()

	ttl := cfg.JWTTTL
	if len(os.Args) == 3 {
		d, err := time.ParseDuration(os.Args[2])
		if err != nil {
			log.Fatalf("invalid ttl %q: %v", os.Args[2], err)
		}
		ttl = d
	}

	ts, err := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		log.Fatal(err)
	}
	token, err := ts.SignWithTTL(os.Args[1], auth.RoleAdmin, ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
