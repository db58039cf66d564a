package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/doaj-reviewer/internal/model"
	"github.com/ppiankov/doaj-reviewer/internal/rules"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage doaj-reviewer configuration",
	Long: `Manage doaj-reviewer configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DOAJ_REVIEWER_*, also read from .env)
3. Config file (~/.doaj-reviewer/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(yamlData))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create ~/.doaj-reviewer/config.yaml with every option set to its default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		configPath := filepath.Join(home, ".doaj-reviewer", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s (delete it first to recreate)", configPath)
		}

		defaults, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("marshal defaults: %w", err)
		}

		var buf bytes.Buffer
		buf.WriteString(configHeader)
		buf.Write(defaults)
		buf.WriteString(configFooter)

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		return nil
	},
}

const configHeader = `# doaj-reviewer configuration
#
# Priority (highest first): CLI flags, DOAJ_REVIEWER_* environment variables
# (e.g. DOAJ_REVIEWER_FETCH_JS_MODE=off, also read from .env), this file,
# built-in defaults.

`

const configFooter = `
# Shared fetch cache tier for several reviewer processes:
#   cache:
#     redis_addr: localhost:6379
`

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the configured ruleset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Fetch.JSMode.Valid() {
			return fmt.Errorf("%w: fetch.js_mode %q is not one of auto, on, off", model.ErrMalformedSchema, cfg.Fetch.JSMode)
		}

		rs := rules.DefaultRuleset()
		if cfg.Review.Ruleset != "" {
			if rs, err = rules.LoadRuleset(cfg.Review.Ruleset); err != nil {
				return err
			}
		}
		reg, err := rules.DefaultRegistry(cfg)
		if err != nil {
			return err
		}
		missing, unused := rulesetCoverage(rs, reg)
		for _, id := range missing {
			fmt.Fprintf(os.Stderr, "⚠ %s has no evaluator and will need human review\n", id)
		}
		if len(unused) > 0 {
			fmt.Fprintf(os.Stderr, "ℹ %d registered evaluator(s) not used by this ruleset: %s\n",
				len(unused), strings.Join(unused, ", "))
		}

		fmt.Printf("✓ Configuration valid, ruleset %s %s (%d rules, %d evaluators registered)\n",
			rs.ID, rs.Version, len(rs.Rules), len(reg.RuleIDs()))
		return nil
	},
}

// rulesetCoverage lists ruleset rules without an evaluator and registered
// evaluators the ruleset never names
func rulesetCoverage(rs *rules.Ruleset, reg *rules.Registry) (missing, unused []string) {
	named := make(map[string]bool, len(rs.Rules))
	for _, rule := range rs.Rules {
		named[rule.RuleID] = true
		if _, ok := reg.Lookup(rule.RuleID); !ok {
			missing = append(missing, rule.RuleID)
		}
	}
	for _, id := range reg.RuleIDs() {
		if !named[id] {
			unused = append(unused, id)
		}
	}
	return missing, unused
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
