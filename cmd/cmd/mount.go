// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/ostafen/binwalk/internal/fuse"
	"github.com/ostafen/binwalk/internal/scan"
	"github.com/ostafen/binwalk/pkg/dfxml"
	"github.com/spf13/cobra"
)

func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount <file> <report_file>",
		Short: "Mount the matches of a scan report as read-only files",
		Long: `The 'mount' command exposes every match recorded in a DFXML report produced by 'scan' as a read-only file,
backed by the byte range of the scanned file it was found at. You must provide the path of the scanned file and of the report.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunMount,
	}

	cmd.Flags().StringP("mountpoint", "m", "", "Absolute path to the directory where the filesystem will be mounted. If not specified, a default will be generated.")
	return cmd
}

func RunMount(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	reportFile, err := scan.OpenReport(args[1])
	if err != nil {
		return err
	}
	defer reportFile.Close()

	mountpoint, _ := cmd.Flags().GetString("mountpoint")
	if mountpoint == "" {
		mountpoint = getMountpoint(args[1])
	}

	objects, err := dfxml.ReadFileObjects(bufio.NewReader(reportFile))
	if err != nil {
		return err
	}

	regions, err := fuse.RegionsFromReport(objects, uint64(info.Size()))
	if err != nil {
		return err
	}
	return fuse.Mount(mountpoint, f, regions)
}

func getMountpoint(reportFileName string) string {
	baseName := strings.TrimSuffix(filepath.Base(reportFileName), ".gz")
	ext := filepath.Ext(baseName)
	baseName = strings.TrimSuffix(baseName, ext)
	mountpoint := baseName
	if ext == "" {
		mountpoint += "_mnt"
	}
	return mountpoint
}
