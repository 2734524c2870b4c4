package pipeline

import (
	"fmt"
	"strings"

	"github.com/bekovrafik/DreamColor/internal/model"
)

const lineArtStyle = "Style Requirements: clear bold black lines, pure white background, NO shading, NO grayscale, NO colors."

// planPrompt asks for n scene descriptions as a JSON array of strings.
func planPrompt(req Request, n int) string {
	var ctx []string
	for _, t := range req.Transcript {
		who := "Idea Helper"
		if t.Role == model.RoleUser {
			who = "Parent"
		}
		ctx = append(ctx, who+": "+t.Text)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are creating a %d-page coloring book for a child named %s. Theme: %s.\n", n, req.ChildName, req.Theme)
	fmt.Fprintf(&sb, "Previous conversation ideas: %s.\n", strings.Join(ctx, "\n"))
	fmt.Fprintf(&sb, "Task: Generate %d distinct, creative, and detailed scene descriptions.\n", n)
	if n == PaidRunSize {
		sb.WriteString("One of these must be a cover page design.\n")
	}
	sb.WriteString("If an image was uploaded, assume it is the main character and incorporate it into the scenes.\n")
	sb.WriteString(`Return ONLY a valid JSON array of strings. Example: ["scene 1..."].`)
	return sb.String()
}

// scenePrompt builds the line-art request for one scene.
func scenePrompt(scene, theme, child string, withReference bool) string {
	var sb strings.Builder
	sb.WriteString("Create a high-quality children's coloring page (line art only).\n")
	fmt.Fprintf(&sb, "Scene Description: %s.\n", scene)
	fmt.Fprintf(&sb, "Theme: %s.\n", theme)
	fmt.Fprintf(&sb, "Main Character Name: %s.\n", child)
	sb.WriteString(lineArtStyle + "\n")
	sb.WriteString("Ensure the image is simple enough for a child to color but detailed enough to be fun.")
	if withReference {
		fmt.Fprintf(&sb, " IMPORTANT: Use the provided reference image as the primary visual source for the character %s. Maintain the character's key features in line art style.", child)
	}
	return sb.String()
}

// defaultScene is used when a regeneration carries no description.
func defaultScene(theme, child string) string {
	return fmt.Sprintf("A fun %s scene for %s", theme, child)
}
