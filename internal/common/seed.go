package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

type SeedVoucher struct {
	Title      string `yaml:"title"`
	IsGiftCard bool   `yaml:"gift_card"`
	Count      int    `yaml:"count"`
}

type SeedUser struct {
	Id       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Email    string        `yaml:"email"`
	Merchant bool          `yaml:"merchant"`
	Vouchers []SeedVoucher `yaml:"vouchers"`
}

type SeedConfig struct {
	Users []SeedUser `yaml:"users"`
}

// LoadSeedConfig reads the users (and merchant vouchers) cmd/setup provisions
func LoadSeedConfig(seedFile string) ([]SeedUser, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}

	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", seedFile, err)
	}

	seen := make(map[string]bool, len(config.Users))
	for i, user := range config.Users {
		if user.Email == "" {
			return nil, fmt.Errorf("user at index %d missing email", i)
		}
		if user.Name == "" {
			return nil, fmt.Errorf("user at index %d missing name", i)
		}
		key := strings.ToLower(user.Email)
		if seen[key] {
			return nil, fmt.Errorf("user at index %d: duplicate email %s", i, user.Email)
		}
		seen[key] = true

		if len(user.Vouchers) > 0 && !user.Merchant {
			return nil, fmt.Errorf("user %s has vouchers but is not a merchant", user.Email)
		}
		for j, voucher := range user.Vouchers {
			if strings.TrimSpace(voucher.Title) == "" {
				return nil, fmt.Errorf("voucher %d of %s missing title", j, user.Email)
			}
		}
	}

	return config.Users, nil
}
