package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/KaramelBytes/insighto-cli/internal/utils"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List, show or scaffold dashboard templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates in the templates directory plus the built-in default",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := templateRegistry()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			t, err := reg.Get(name)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "- %s: %s (%d components)\n", name, t.Title, len(t.Layout))
		}
		errs := reg.Errors()
		files := make([]string, 0, len(errs))
		for f := range errs {
			files = append(files, f)
		}
		sort.Strings(files)
		for _, f := range files {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Skipped %s: %v\n", f, errs[f])
		}
		return nil
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <name|file>",
	Short: "Print a template as normalized JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTemplate(args[0])
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(t)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var tplInitForce bool

var templatesInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new template from the built-in sample dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if name == "" || filepath.Base(name) != name {
			return fmt.Errorf("invalid template name: %q", name)
		}
		if !template.IsTemplateFile(name) {
			name += ".json"
		}
		dir := ""
		if cfg != nil {
			dir = cfg.TemplatesDir
		}
		if dir == "" {
			return errors.New("no templates directory configured (set templates_dir)")
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil && !tplInitForce {
			return fmt.Errorf("template already exists: %s (use --force to overwrite)", path)
		}
		data := template.DefaultJSON()
		if ext := filepath.Ext(name); ext != ".json" {
			t, err := template.Parse(data, "json")
			if err != nil {
				return err
			}
			if data, err = template.Marshal(t, ext); err != nil {
				return err
			}
		}
		if err := utils.SafeWriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created template %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	templatesCmd.AddCommand(templatesInitCmd)
	templatesInitCmd.Flags().BoolVar(&tplInitForce, "force", false, "overwrite an existing template")
}
