package convert

import (
	"context"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/niiconvert"
	"github.com/carbocation/niiconvert/raster"
	"github.com/carbocation/niiconvert/volume"
	"github.com/carbocation/pfx"
)

// ImageToNii converts the raster image at input into a NIfTI volume at
// output (.nii, or .nii.gz for gzip). Either path may be a gs:// URL, in
// which case client must be non-nil. Nothing is left at output on failure.
func ImageToNii(ctx context.Context, client *storage.Client, input, output string) (*volume.Volume, error) {
	if !volume.IsNiftiPath(output) {
		return nil, pfx.Err(fmt.Errorf("%s: output must end in .nii or .nii.gz", output))
	}

	img, err := openImage(ctx, client, input)
	if err != nil {
		return nil, err
	}

	vol := ImageToVolume(raster.ToNRGBA(img))

	out, err := niiconvert.MaybeCreateInGoogleStorage(ctx, output, client, "application/octet-stream")
	if err != nil {
		return nil, err
	}

	if err := volume.Write(out, vol, volume.IsCompressedPath(output)); err != nil {
		out.Abort()
		return nil, err
	}

	if err := out.Commit(); err != nil {
		return nil, err
	}

	return vol, nil
}

// NiiToImage renders one slice of the NIfTI volume at input as a grayscale
// PNG at output. Either path may be a gs:// URL, in which case client must be
// non-nil. Nothing is left at output on failure.
func NiiToImage(ctx context.Context, client *storage.Client, input, output string) (*image.Gray, error) {
	if ext := strings.ToLower(filepath.Ext(output)); ext != ".png" {
		log.Printf("Warning: %s does not end in .png, but will be written as PNG\n", output)
	}

	localPath, cleanup, err := niiconvert.MaybeLocalizeFromGoogleStorage(ctx, input, client)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	vol, err := volume.Load(localPath)
	if err != nil {
		return nil, err
	}

	img, err := VolumeToImage(vol)
	if err != nil {
		return nil, pfx.Err(err)
	}

	out, err := niiconvert.MaybeCreateInGoogleStorage(ctx, output, client, "image/png")
	if err != nil {
		return nil, err
	}

	if err := raster.EncodePNG(out, img); err != nil {
		out.Abort()
		return nil, err
	}

	if err := out.Commit(); err != nil {
		return nil, err
	}

	return img, nil
}

func openImage(ctx context.Context, client *storage.Client, input string) (image.Image, error) {
	f, err := niiconvert.MaybeOpenFromGoogleStorage(ctx, input, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := raster.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}

	return img, nil
}
