package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"clrmeta/internal/image"
	"clrmeta/internal/metadata"
	"clrmeta/internal/token"
)

type inspectOptions struct {
	members bool
	find    string
	width   int
}

var (
	inspectMembers bool
	inspectFind    string
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectMembers, "members", false, "list methods and fields under each type")
	inspectCmd.Flags().StringVar(&inspectFind, "find", "", "look up one type by namespace-qualified name (ns.Name)")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [module...]",
	Short: "Print row counts and definitions of loaded modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := inspectOptions{
			members: inspectMembers,
			find:    inspectFind,
			width:   terminalWidth(os.Stdout),
		}
		return withSession(cmd, func(s *session) error {
			mods, err := s.selectModules(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, mod := range mods {
				img, err := s.prov.GetImageForModule(mod.ID)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := renderImage(out, img, opts); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

// selectModules maps arguments to modules; no arguments means all of them.
func (s *session) selectModules(args []string) ([]metadata.Module, error) {
	if len(args) == 0 {
		return s.prov.Modules(), nil
	}
	mods := make([]metadata.Module, 0, len(args))
	for _, arg := range args {
		mod, err := s.module(arg)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func renderImage(out io.Writer, img image.Image, opts inspectOptions) error {
	mod := img.Module()
	fmt.Fprintf(out, "%s  %s  %s\n", nameColor.Sprint(mod.Name), mod.Origin, dimColor.Sprint(mod.ID))

	c := img.Counts()
	fmt.Fprintf(out, "  types %d  methods %d  fields %d", c.Types, c.Methods, c.Fields)
	if img.Origin() == metadata.OriginInterpreted {
		fmt.Fprintf(out, "  typerefs %d  assemblyrefs %d  memberrefs %d  typespecs %d  methodspecs %d",
			c.TypeRefs, c.AssemblyRefs, c.MemberRefs, c.TypeSpecs, c.MethodSpecs)
	}
	fmt.Fprintln(out)

	if opts.find != "" {
		return renderFind(out, img, opts)
	}

	rows := make([]typeRow, 0, c.Types)
	for raw := uint32(0); raw < c.Types; raw++ {
		def, err := img.GetTypeDefinition(raw)
		if err != nil {
			return err
		}
		rows = append(rows, typeRow{def: def, label: typeLabel(def)})
	}
	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, runewidth.StringWidth(r.label))
	}
	for _, r := range rows {
		if err := renderType(out, img, r, labelWidth, opts); err != nil {
			return err
		}
	}
	return nil
}

type typeRow struct {
	def   *metadata.TypeDef
	label string
}

func renderType(out io.Writer, img image.Image, r typeRow, labelWidth int, opts inspectOptions) error {
	def := r.def
	line := fmt.Sprintf("  %-12s %s  %-9s methods %d  fields %d",
		shortToken(def.ID.Token),
		padRight(r.label, labelWidth), typeKind(def), def.MethodCount, def.FieldCount)
	fmt.Fprintln(out, fit(line, opts.width))
	if !opts.members {
		return nil
	}
	for i := uint32(0); i < def.MethodCount; i++ {
		m, err := img.GetMethodDefinition(def.FirstMethod + i)
		if err != nil {
			return err
		}
		name := m.Name + genericSuffix(m.Generic)
		extra := fmt.Sprintf("params %d", m.ParamCount)
		if m.Flags&metadata.MethodStatic != 0 {
			extra += "  static"
		}
		if _, ok := img.GetMethodBody(m.ID.Token); ok {
			extra += "  body"
		}
		fmt.Fprintf(out, "      %s  %s  %s\n", tokenColor.Sprint(shortToken(m.ID.Token)), name, dimColor.Sprint(extra))
	}
	for i := uint32(0); i < def.FieldCount; i++ {
		f, err := img.GetFieldDefinition(def.FirstField + i)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "      %s  %s  %s\n", tokenColor.Sprint(shortToken(f.ID.Token)), f.Name, dimColor.Sprint(f.Sig.Kind))
	}
	return nil
}

func renderFind(out io.Writer, img image.Image, opts inspectOptions) error {
	ns, name := splitTypeName(opts.find)
	def, err := img.FindTypeByName(ns, name, false)
	if err != nil {
		return err
	}
	if def == nil {
		fmt.Fprintf(out, "  %s not found\n", opts.find)
		return nil
	}
	return renderType(out, img, typeRow{def: def, label: typeLabel(def)}, 0, opts)
}

// splitTypeName splits "System.Collections.Generic.List`1" at the last dot.
// Input is NFC-normalized so composed and decomposed spellings match.
func splitTypeName(s string) (namespace, name string) {
	s = norm.NFC.String(strings.TrimSpace(s))
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func typeLabel(def *metadata.TypeDef) string {
	return def.FullName() + genericSuffix(def.Generic)
}

func genericSuffix(c *metadata.GenericContainer) string {
	if c.Count() == 0 {
		return ""
	}
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name
	}
	return "<" + strings.Join(names, ", ") + ">"
}

func typeKind(def *metadata.TypeDef) string {
	switch {
	case def.Flags&metadata.TypeInterface != 0:
		return "interface"
	case def.IsValueType():
		return "struct"
	case def.Flags&metadata.TypeAbstract != 0 && def.Flags&metadata.TypeSealed != 0:
		return "static"
	default:
		return "class"
	}
}

func shortToken(t token.Token) string {
	return fmt.Sprintf("%s#%d", t.Kind(), t.Row())
}

func padRight(s string, width int) string {
	if gap := width - runewidth.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// fit truncates a line to the terminal width; width 0 leaves it alone.
func fit(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
