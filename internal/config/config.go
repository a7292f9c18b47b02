package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RevealDelay time.Duration
	RoomTTL     time.Duration
	RoomCodeLen int

	RedisURL string

	AllowedOrigins []string

	MsgTemplateDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:  ":3000",
		RevealDelay: 800 * time.Millisecond,
		RoomTTL:     30 * time.Minute,
		RoomCodeLen: 5,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	if v := strings.TrimSpace(os.Getenv("REVEAL_DELAY_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("REVEAL_DELAY_MS must be a positive integer")
		}
		cfg.RevealDelay = time.Duration(n) * time.Millisecond
	}
	if v := strings.TrimSpace(os.Getenv("ROOM_TTL_SEC")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("ROOM_TTL_SEC must be a positive integer")
		}
		cfg.RoomTTL = time.Duration(n) * time.Second
	}
	if v := strings.TrimSpace(os.Getenv("ROOM_CODE_LEN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 4 && n <= 12 {
			cfg.RoomCodeLen = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			s := strings.TrimSpace(p)
			if s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	cfg.MsgTemplateDir = strings.TrimSpace(os.Getenv("MSG_TEMPLATE_DIR"))

	return cfg, nil
}
