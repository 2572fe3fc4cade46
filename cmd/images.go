package cmd

import (
	"github.com/spf13/cobra"

	"spacegun/internal/formatting"
)

func newImagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List the images in the docker registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			images, err := application.Services().Images.List(cmd.Context())
			if err != nil {
				return err
			}

			view := formatting.View{Headers: []string{"IMAGE"}, Empty: "No images found"}
			for _, image := range images {
				view.Rows = append(view.Rows, []string{image})
			}
			return write(cmd, images, view)
		},
	}
}

func newTagsCmd() *cobra.Command {
	var resolve bool
	c := &cobra.Command{
		Use:   "tags IMAGE",
		Short: "List the tags of an image",
		Long: `Lists the tags of an image in the docker registry. With --resolve, every
tag is resolved to the digest pinned URL that deployments are updated to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			images := application.Services().Images
			tags, err := images.Tags(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !resolve {
				view := formatting.View{Headers: []string{"TAG"}, Empty: "No tags found"}
				for _, tag := range tags {
					view.Rows = append(view.Rows, []string{tag})
				}
				return write(cmd, tags, view)
			}

			view := formatting.View{Headers: []string{"TAG", "URL"}, Empty: "No tags found"}
			resolved := make([]interface{}, 0, len(tags))
			for _, tag := range tags {
				image, err := images.Image(cmd.Context(), args[0], tag)
				if err != nil {
					return err
				}
				resolved = append(resolved, image)
				view.Rows = append(view.Rows, []string{tag, image.URL})
			}
			return write(cmd, resolved, view)
		},
	}
	c.Flags().BoolVar(&resolve, "resolve", false, "Resolve every tag to its digest")
	return c
}

func init() {
	rootCmd.AddCommand(newImagesCmd(), newTagsCmd())
}
