package cmd

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/server"
)

func newOGUploadCmd() *cobra.Command {
	var name, contentType string
	cmd := &cobra.Command{
		Use:   "og-upload <file>",
		Short: "Upload an Open Graph image to the configured blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(name))
			}
			if contentType == "" {
				contentType = http.DetectContentType(data)
			}

			store, closeStore, err := server.BuildBlobStore(cmd.Context(), &rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			if closeStore != nil {
				defer closeStore() //nolint:errcheck // best effort on exit
			}

			uri, err := store.PutObject(cmd.Context(), path.Join(rt.cfg.Storage.OGPrefix, name), contentType, bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("upload image: %w", err)
			}
			rt.logger.Info("og image uploaded", zap.String("uri", uri), zap.String("content_type", contentType))
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "object name under the OG prefix (defaults to the file name)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (detected when empty)")
	return cmd
}
