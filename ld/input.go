package ld

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ReadInputFiles reads every path in `paths` into the link graph in order.
// An input of the form `-lname` is looked up with FindLibrary.
func ReadInputFiles(ctx *Context, paths []string) error {
	for _, path := range paths {
		if name, ok := strings.CutPrefix(path, "-l"); ok {
			lib, err := FindLibrary(ctx, name)
			if err != nil {
				return err
			}

			path = lib
		}

		mf, err := ctx.OpenFile(path)
		if err != nil {
			return err
		}

		if err := ReadFile(ctx, mf); err != nil {
			return err
		}
	}

	return nil
}

// FindLibrary searches the library paths in order for `libname.so` and then
// `libname.a`.  A name starting with a colon is searched for verbatim.
func FindLibrary(ctx *Context, name string) (string, error) {
	candidates := []string{"lib" + name + ".so", "lib" + name + ".a"}
	if verbatim, ok := strings.CutPrefix(name, ":"); ok {
		candidates = []string{verbatim}
	}

	for _, dir := range ctx.Args.LibraryPaths {
		for _, candidate := range candidates {
			path := filepath.Join(dir, candidate)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, nil
			}
		}
	}

	return "", errors.Newf("library not found: %s", name)
}

// ReadFile adds `mf` to the link graph according to its file type.  Archive
// members are added lazily: they stay dead until a reference pulls them in.
func ReadFile(ctx *Context, mf *MappedFile) error {
	return readFile(ctx, mf, false)
}

func readFile(ctx *Context, mf *MappedFile, inLib bool) error {
	ft := GetFileType(mf.Data)

	switch {
	case ft == FileTypeEmpty:
		return nil
	case ft == FileTypeElfObject:
		file, err := ReadObject(ctx, mf)
		if err != nil {
			return err
		}

		addInput(ctx, file, inLib)
	case ft == FileTypeElfDso:
		if inLib {
			return errors.Newf("%s: shared object inside an archive", mf.DisplayName())
		}

		file, err := ReadShared(ctx, mf)
		if err != nil {
			return err
		}

		file.Priority = ctx.NextPriority()
		file.IsAlive = true
		ctx.Dsos = append(ctx.Dsos, file)
	case ft == FileTypeArchive:
		members, err := ReadArchiveMembers(mf)
		if err != nil {
			return err
		}

		for _, member := range members {
			if err := readFile(ctx, member, true); err != nil {
				return err
			}
		}
	case ft.IsIR():
		if ctx.ReadIRObject == nil {
			return errors.Newf("%s: cannot read %s without an LTO session", mf.DisplayName(), ft)
		}

		file, err := ctx.ReadIRObject(mf)
		if err != nil {
			return err
		}

		addInput(ctx, file, inLib)
	default:
		return errors.Newf("%s: unknown file type", mf.DisplayName())
	}

	return nil
}

func addInput(ctx *Context, file *InputFile, inLib bool) {
	file.InLib = inLib
	file.IsAlive = !inLib
	file.Priority = ctx.NextPriority()
	ctx.Objs = append(ctx.Objs, file)
}
