package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/simwire/simwire/internal/errors"
	"github.com/simwire/simwire/pkg/protocol"
	"github.com/simwire/simwire/pkg/terrain"
)

func terrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terrain",
		Short: "Encode, decode and import raw heightmaps",
		Long: `Work with terrain offline.

Heightmaps are .r32 files: square grids of little-endian float32
heights, row by row, whose side is a multiple of 16.

Encoded files hold the LayerData streams a viewer would receive, each
prefixed with its 16-bit little-endian length.`,
	}
	cmd.AddCommand(terrainEncodeCmd(), terrainDecodeCmd(), terrainImportCmd())
	return cmd
}

func terrainEncodeCmd() *cobra.Command {
	var (
		output string
		layer  string
	)

	cmd := &cobra.Command{
		Use:   "encode <heightmap.r32>",
		Short: "Compress a heightmap into LayerData streams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lt, err := terrain.ParseLayerType(layer)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.New(errors.CodeHeightmapRead).Wrap(err)
			}
			patches, err := parseHeightmap(raw)
			if err != nil {
				return err
			}
			data, streams, err := encodeStreams(lt, patches)
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".bin"
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}
			success("Encoded %d patches into %d streams (%d bytes, %.1f%% of raw)",
				len(patches), streams, len(data), 100*float64(len(data))/float64(len(raw)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <input>.bin)")
	cmd.Flags().StringVarP(&layer, "layer", "l", "land", "Layer type: land, water, wind or cloud")

	return cmd
}

func terrainDecodeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "decode <streams.bin>",
		Short: "Decompress LayerData streams back into a heightmap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.New(errors.CodeHeightmapRead).Wrap(err)
			}
			layer, patches, err := decodeStreams(data)
			if err != nil {
				return err
			}
			raw, err := formatHeightmap(patches)
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".r32"
			}
			if err := os.WriteFile(output, raw, 0644); err != nil {
				return err
			}
			success("Decoded %d %s patches into %s", len(patches), layer, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <input>.r32)")

	return cmd
}

func terrainImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <heightmap.r32>",
		Short: "Write a heightmap into the configured terrain store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			errorOutput.jsonLogs = cfg.Log.Format == "json"
			if err := cfg.Validate(); err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.New(errors.CodeHeightmapRead).Wrap(err)
			}
			patches, err := parseHeightmap(raw)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := openStore(ctx, cfg.Terrain)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, p := range patches {
				if err := store.SetPatch(ctx, p.X, p.Y, p); err != nil {
					return fmt.Errorf("patch (%d,%d): %w", p.X, p.Y, err)
				}
			}
			success("Imported %d patches into the %s store", len(patches), cfg.Terrain.Store)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to simwire.yaml")

	return cmd
}

// parseHeightmap splits a raw square heightmap into patches.
func parseHeightmap(raw []byte) ([]terrain.Patch, error) {
	samples := len(raw) / 4
	side := int(math.Sqrt(float64(samples)))
	if len(raw)%4 != 0 || side*side != samples || side == 0 || side%terrain.PatchSize != 0 {
		return nil, errors.New(errors.CodeHeightmapSize).
			WithDetail(fmt.Sprintf("%d bytes is not a square grid of 16x16 patches", len(raw)))
	}
	perSide := side / terrain.PatchSize
	if perSide > terrain.MaxPatchCoord {
		return nil, errors.New(errors.CodeHeightmapSize).
			WithDetail(fmt.Sprintf("%d patches per side, at most %d", perSide, terrain.MaxPatchCoord))
	}

	patches := make([]terrain.Patch, 0, perSide*perSide)
	for py := 0; py < perSide; py++ {
		for px := 0; px < perSide; px++ {
			p := terrain.Patch{X: px, Y: py}
			for row := 0; row < terrain.PatchSize; row++ {
				for col := 0; col < terrain.PatchSize; col++ {
					i := (py*terrain.PatchSize+row)*side + px*terrain.PatchSize + col
					p.Heights[row][col] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
				}
			}
			patches = append(patches, p)
		}
	}
	return patches, nil
}

// formatHeightmap assembles a square grid of patches into raw samples.
func formatHeightmap(patches []terrain.Patch) ([]byte, error) {
	perSide := int(math.Sqrt(float64(len(patches))))
	if perSide*perSide != len(patches) || perSide == 0 {
		return nil, errors.New(errors.CodeHeightmapSize).
			WithDetail(fmt.Sprintf("%d patches do not form a square", len(patches)))
	}
	side := perSide * terrain.PatchSize
	raw := make([]byte, side*side*4)
	for _, p := range patches {
		if p.X >= perSide || p.Y >= perSide {
			return nil, errors.New(errors.CodeHeightmapSize).
				WithDetail(fmt.Sprintf("patch (%d,%d) outside a %dx%d grid", p.X, p.Y, perSide, perSide))
		}
		for row := 0; row < terrain.PatchSize; row++ {
			for col := 0; col < terrain.PatchSize; col++ {
				i := (p.Y*terrain.PatchSize+row)*side + p.X*terrain.PatchSize + col
				binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(float32(p.Heights[row][col])))
			}
		}
	}
	return raw, nil
}

// encodeStreams compresses patches into MTU-sized streams, each written
// with a 16-bit length prefix.
func encodeStreams(layer terrain.LayerType, patches []terrain.Patch) ([]byte, int, error) {
	streams, err := terrain.CompressBatches(layer, patches, protocol.MTU)
	if err != nil {
		return nil, 0, err
	}
	size := 0
	for _, s := range streams {
		size += 2 + len(s)
	}
	e := protocol.NewEncoder(size)
	for _, s := range streams {
		e.WriteVariable2(s)
	}
	if err := e.Err(); err != nil {
		return nil, 0, err
	}
	return e.Bytes(), len(streams), nil
}

// decodeStreams reverses encodeStreams. All streams must share a layer.
func decodeStreams(data []byte) (terrain.LayerType, []terrain.Patch, error) {
	d := protocol.NewDecoder(data)
	var (
		layer   terrain.LayerType
		patches []terrain.Patch
	)
	for i := 0; !d.EOF(); i++ {
		stream, err := d.ReadVariable2()
		if err != nil {
			return 0, nil, errors.New(errors.CodeHeightmapRead).
				WithDetail(fmt.Sprintf("stream %d", i)).
				Wrap(err)
		}
		lt, ps, err := terrain.Decompress(stream)
		if err != nil {
			return 0, nil, errors.New(errors.CodeHeightmapRead).
				WithDetail(fmt.Sprintf("stream %d", i)).
				Wrap(err)
		}
		if i > 0 && lt != layer {
			return 0, nil, errors.New(errors.CodeHeightmapRead).
				WithDetail(fmt.Sprintf("stream %d is %s, earlier streams are %s", i, lt, layer))
		}
		layer = lt
		patches = append(patches, ps...)
	}
	return layer, patches, nil
}
