// niiconvert converts a PNG or JPEG image into a single-slice NIfTI volume, or
// with --reverse, renders the middle slice of a NIfTI volume as a grayscale
// PNG. Input and output may be local paths or gs:// URLs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/carbocation/niiconvert"
	_ "github.com/carbocation/niiconvert/compileinfoprint"
	"github.com/carbocation/niiconvert/convert"
)

const (
	exitOK     = 0
	exitFailed = 1
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	input, output, reverse, err := parseArgs(args, os.Stderr)
	if err != nil {
		return exitFailed
	}

	if reverse {
		return niiToImage(context.Background(), input, output)
	}

	return imageToNii(context.Background(), input, output)
}

// parseArgs accepts flags before, between, or after the two positional
// arguments, which the flag package alone does not.
func parseArgs(args []string, stderr io.Writer) (input, output string, reverse bool, err error) {
	fs := flag.NewFlagSet("niiconvert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&reverse, "reverse", false, "Convert a .nii or .nii.gz volume into a PNG instead of an image into a volume.")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: niiconvert <input> <output> [--reverse]\n")
		fs.PrintDefaults()
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return "", "", false, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}

	if len(positional) != 2 {
		fs.Usage()
		return "", "", false, fmt.Errorf("expected 2 positional arguments, got %d", len(positional))
	}

	return positional[0], positional[1], reverse, nil
}

func imageToNii(ctx context.Context, input, output string) int {
	client, err := niiconvert.NewStorageClientIfNeeded(ctx, input, output)
	if err != nil {
		log.Printf("Error converting image: %v\n", err)
		return exitFailed
	}
	if client != nil {
		defer client.Close()
	}

	vol, err := convert.ImageToNii(ctx, client, input, output)
	if err != nil {
		log.Printf("Error converting image: %v\n", err)
		return exitFailed
	}

	fmt.Printf("Successfully converted %s to %s\n", input, output)
	fmt.Printf("Output shape: %s\n", vol.Shape())

	return exitOK
}

func niiToImage(ctx context.Context, input, output string) int {
	client, err := niiconvert.NewStorageClientIfNeeded(ctx, input, output)
	if err != nil {
		log.Printf("Error converting NII: %v\n", err)
		return exitFailed
	}
	if client != nil {
		defer client.Close()
	}

	if _, err := convert.NiiToImage(ctx, client, input, output); err != nil {
		log.Printf("Error converting NII: %v\n", err)
		return exitFailed
	}

	fmt.Printf("Successfully converted %s to %s\n", input, output)

	return exitOK
}
