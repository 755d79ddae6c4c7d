// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/saferwall/jclass"
	"github.com/saferwall/jclass/internal/opcodetab"
)

type config struct {
	wantConstantPool bool
	wantFields       bool
	wantMethods      bool
	wantAttributes   bool
	wantCode         bool
	wantDisasm       bool
}

func main() {
	dumpCmd := flag.NewFlagSet("dump", flag.ExitOnError)
	dumpConstantPool := dumpCmd.Bool("constantpool", false, "Dump the constant pool")
	dumpFields := dumpCmd.Bool("fields", false, "Dump field records")
	dumpMethods := dumpCmd.Bool("methods", false, "Dump method records")
	dumpAttributes := dumpCmd.Bool("attributes", false, "Dump top-level class attributes")
	dumpCode := dumpCmd.Bool("code", false, "Dump method bytecode")
	dumpDisasm := dumpCmd.Bool("disasm", false, "Disassemble method bytecode (implies -code)")

	if len(os.Args) < 2 {
		showHelp()
	}

	switch os.Args[1] {
	case "dump":
		dumpCmd.Parse(os.Args[3:])
		if dumpCmd.NArg() > 0 || len(os.Args) < 3 {
			showHelp()
		}
		cfg := config{
			wantConstantPool: *dumpConstantPool,
			wantFields:       *dumpFields,
			wantMethods:      *dumpMethods,
			wantAttributes:   *dumpAttributes,
			wantCode:         *dumpCode,
			wantDisasm:       *dumpDisasm,
		}
		dump(os.Args[2], cfg)
	case "version":
		fmt.Println("You are using jclassdump 0.1.0")
	default:
		showHelp()
	}
}

func showHelp() {
	fmt.Print(
		`
╦╔═╗┬  ┌─┐┌─┐┌─┐┌┬┐┬ ┬┌┬┐┌─┐
║║  │  ├─┤└─┐└─┐ │││ │││││├─┘
╩╚═╝┴─┘┴ ┴└─┘└─┘─┴┘└─┘┴ ┴┴

	A JVM classfile dumper.
`)
	fmt.Println("Usage: jclassdump dump <file.class> [-constantpool] [-fields] [-methods] [-attributes] [-code] [-disasm]")
	os.Exit(1)
}

func dump(filename string, cfg config) {
	cf, err := jclass.Open(filename, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening %s: %v\n", filename, err)
		os.Exit(1)
	}

	fmt.Printf("\n\t------[ Classfile ]------\n\n")
	w := tabwriter.NewWriter(os.Stdout, 1, 1, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Version:\t %s\n", cf.Version)
	fmt.Fprintf(w, "This class:\t %s\n", cf.ThisClass)
	if cf.SuperClass != nil {
		fmt.Fprintf(w, "Super class:\t %s\n", cf.SuperClass)
	}
	fmt.Fprintf(w, "Modifiers:\t 0x%04x\n", cf.Modifiers)
	fmt.Fprintf(w, "Constant pool size:\t %d\n", cf.Pool.Size())
	fmt.Fprintf(w, "Fields:\t %d\n", len(cf.Fields))
	fmt.Fprintf(w, "Methods:\t %d\n", len(cf.Methods))
	w.Flush()

	if cfg.wantConstantPool {
		fmt.Printf("\nCONSTANT POOL\n*************\n")
		w := tabwriter.NewWriter(os.Stdout, 1, 1, 3, ' ', tabwriter.AlignRight)
		for i := 1; i < cf.Pool.Size(); i++ {
			c, err := cf.Pool.GetConstant(uint16(i))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "#%d\t %+v\n", i, c)
		}
		w.Flush()
	}

	if cfg.wantFields {
		fmt.Printf("\nFIELDS\n******\n")
		w := tabwriter.NewWriter(os.Stdout, 1, 1, 3, ' ', tabwriter.AlignRight)
		for _, f := range cf.Fields {
			fmt.Fprintf(w, "%s\t %s\t 0x%04x\n", f.Name, f.Type, f.Modifiers)
		}
		w.Flush()
	}

	if cfg.wantMethods {
		fmt.Printf("\nMETHODS\n*******\n")
		w := tabwriter.NewWriter(os.Stdout, 1, 1, 3, ' ', tabwriter.AlignRight)
		for _, m := range cf.Methods {
			fmt.Fprintf(w, "%s%s\t 0x%04x\n", m.Name, m.Descriptor, m.Modifiers)
			if cfg.wantCode || cfg.wantDisasm {
				for _, a := range m.Attributes {
					if a.Code == nil {
						continue
					}
					fmt.Fprintf(w, "  max_stack=%d max_locals=%d code_length=%d\t\n",
						a.Code.MaxStack, a.Code.MaxLocals, len(a.Code.Code))
					if cfg.wantDisasm {
						w.Flush()
						for _, line := range opcodetab.Disassemble(a.Code.Code) {
							fmt.Println("   " + line)
						}
					}
				}
			}
		}
		w.Flush()
	}

	if cfg.wantAttributes {
		fmt.Printf("\nATTRIBUTES\n**********\n")
		w := tabwriter.NewWriter(os.Stdout, 1, 1, 3, ' ', tabwriter.AlignRight)
		for _, a := range cf.Attributes {
			fmt.Fprintf(w, "%s\t\n", a.Name)
		}
		w.Flush()
	}

	if len(cf.Anomalies) > 0 {
		fmt.Printf("\nANOMALIES\n*********\n")
		for _, a := range cf.Anomalies {
			fmt.Println(a)
		}
	}

	fmt.Print("\n")
}
