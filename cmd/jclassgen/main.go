// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/saferwall/jclass"
	"github.com/spf13/cobra"
)

var (
	outDir string
	target string
	jobs   int
)

// seeds lists the classfile scenarios named in spec.md §8, keyed by the
// name passed to `jclassgen build <seed>`.
var seeds = map[string]func(v jclass.Version) (*jclass.Classfile, error){
	"empty":       buildEmptyPublicClass,
	"hello-world": buildHelloWorld,
}

func buildEmptyPublicClass(v jclass.Version) (*jclass.Classfile, error) {
	return jclass.NewClassfile(v,
		jclass.ObjectDescriptor("generated.Empty"),
		jclass.ObjectDescriptor("java.lang.Object"),
		jclass.ClassPublic|jclass.ClassSuper)
}

func buildHelloWorld(v jclass.Version) (*jclass.Classfile, error) {
	cf, err := jclass.NewClassfile(v,
		jclass.ObjectDescriptor("generated.HelloWorld"),
		jclass.ObjectDescriptor("java.lang.Object"),
		jclass.ClassPublic|jclass.ClassSuper)
	if err != nil {
		return nil, err
	}

	objectInit, err := jclass.NewMethodDescriptor(jclass.Void, nil)
	if err != nil {
		return nil, err
	}
	ctor := cf.AddMethod("<init>", objectInit, jclass.MethodPublic)
	ctorBody, err := ctor.Code(cf.Pool, cf.ThisClass)
	if err != nil {
		return nil, err
	}
	ctorBody.LoadLocal(ctorBody.Param(0))
	if _, err := ctorBody.InvokeConstructor(jclass.ObjectDescriptor("java.lang.Object"), objectInit); err != nil {
		return nil, err
	}
	ctorBody.ReturnVoid()

	mainDesc, err := jclass.NewMethodDescriptor(jclass.Void, []*jclass.Descriptor{
		jclass.ArrayDescriptor(jclass.ObjectDescriptor("java.lang.String")),
	})
	if err != nil {
		return nil, err
	}
	main := cf.AddMethod("main", mainDesc, jclass.MethodPublic|jclass.MethodStatic)
	body, err := main.Code(cf.Pool, nil)
	if err != nil {
		return nil, err
	}
	printlnDesc, err := jclass.NewMethodDescriptor(jclass.Void, []*jclass.Descriptor{jclass.ObjectDescriptor("java.lang.String")})
	if err != nil {
		return nil, err
	}
	if _, err := body.LoadField(jclass.ObjectDescriptor("java.lang.System"), "out", jclass.ObjectDescriptor("java.io.PrintStream"), true); err != nil {
		return nil, err
	}
	if _, err := body.LoadConstant("Hello, world!"); err != nil {
		return nil, err
	}
	if _, err := body.InvokeVirtual(jclass.ObjectDescriptor("java.io.PrintStream"), "println", printlnDesc); err != nil {
		return nil, err
	}
	body.ReturnVoid()

	if err := cf.SetSourceFile("HelloWorld.java"); err != nil {
		return nil, err
	}
	return cf, nil
}

func build(cmd *cobra.Command, args []string) {
	v, err := jclass.ParseTargetVersion(target)
	if err != nil {
		log.Fatal(err)
	}
	for _, name := range args {
		seed, ok := seeds[name]
		if !ok {
			log.Printf("unknown seed %q, skipping", name)
			continue
		}
		cf, err := seed(v)
		if err != nil {
			log.Printf("building %s: %v", name, err)
			continue
		}
		path := filepath.Join(outDir, name+".class")
		if err := cf.Save(path); err != nil {
			log.Printf("saving %s: %v", path, err)
			continue
		}
		fmt.Printf("wrote %s\n", path)
	}
}

// batchBuild regenerates every seed across every descriptor file found
// under dir, one worker per jobs slot, mirroring the teacher's
// LoopDirsFiles/loopFilesWorker directory-walk pool (cmd/dump.go) adapted
// to a bounded worker count instead of one goroutine per directory level.
func batchBuild(dir string) error {
	names, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	work := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range work {
				seed, ok := seeds[name]
				if !ok {
					continue
				}
				v, err := jclass.ParseTargetVersion(target)
				if err != nil {
					log.Printf("%s: %v", name, err)
					continue
				}
				cf, err := seed(v)
				if err != nil {
					log.Printf("%s: %v", name, err)
					continue
				}
				if err := cf.Save(filepath.Join(outDir, name+".class")); err != nil {
					log.Printf("%s: %v", name, err)
				}
			}
		}()
	}
	for _, e := range names {
		base := e.Name()
		if ext := filepath.Ext(base); ext != "" {
			base = base[:len(base)-len(ext)]
		}
		work <- base
	}
	close(work)
	wg.Wait()
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "jclassgen",
		Short: "A JVM classfile generator",
		Long:  "Builds seed .class files for testing classfile-consuming tools.",
	}

	buildCmd := &cobra.Command{
		Use:   "build <seed>...",
		Short: "Build one or more named seed classfiles",
		Args:  cobra.MinimumNArgs(1),
		Run:   build,
	}

	batchCmd := &cobra.Command{
		Use:   "batch <descriptor-dir>",
		Short: "Build every seed named by a file under descriptor-dir, concurrently",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := batchBuild(args[0]); err != nil {
				log.Fatal(err)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "output directory")
	rootCmd.PersistentFlags().StringVarP(&target, "target", "t", "1.6", "target classfile version (1.0..1.6)")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 4, "concurrent workers for batch mode")
	rootCmd.AddCommand(buildCmd, batchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
