package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/depscope/depscope/model"
)

var (
	serverURL string
	sbomFile  string
	sbomID    string
	verbose   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "depscope",
	Short: "Dependency graph CLI for SBOM import and analysis",
	Long: `A CLI tool for interacting with the depscope API.
Imports CycloneDX SBOMs into the dependency graph and queries
dependency trees, conflicts, and upgrade recommendations.`,
}

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Import a CycloneDX SBOM into the dependency graph",
	Long: `Reads a CycloneDX JSON document from disk, validates it, and
posts it to the depscope import endpoint under the given SBOM id.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "depscope API server URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Upload command specific flags
	uploadCmd.Flags().StringVarP(&sbomFile, "sbom", "s", "", "Path to CycloneDX SBOM file (required)")
	uploadCmd.Flags().StringVar(&sbomID, "id", "", "SBOM id to import under (defaults to the file basename)")
	uploadCmd.MarkFlagRequired("sbom")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	// Validate SBOM file exists
	if _, err := os.Stat(sbomFile); os.IsNotExist(err) {
		return fmt.Errorf("SBOM file not found: %s", sbomFile)
	}

	sbomContent, err := os.ReadFile(sbomFile)
	if err != nil {
		return fmt.Errorf("failed to read SBOM file: %w", err)
	}

	var doc model.CycloneDX
	if err := json.Unmarshal(sbomContent, &doc); err != nil {
		return fmt.Errorf("SBOM file is not valid JSON: %w", err)
	}

	if doc.BomFormat != "CycloneDX" {
		return fmt.Errorf("SBOM must be in CycloneDX format (bomFormat field missing or incorrect)")
	}

	if verbose {
		fmt.Printf("Loaded CycloneDX SBOM from: %s\n", sbomFile)
		fmt.Printf("CycloneDX Spec Version: %s\n", doc.SpecVersion)
		fmt.Printf("Number of components: %d\n", len(doc.Components))
	}

	id := sbomID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(sbomFile), filepath.Ext(sbomFile))
	}

	if err := postSBOM(serverURL, id, sbomContent); err != nil {
		return fmt.Errorf("failed to upload SBOM: %w", err)
	}

	fmt.Printf("✓ Successfully imported SBOM %s (%d components)\n", id, len(doc.Components))
	return nil
}

func postSBOM(serverURL, id string, body []byte) error {
	if verbose {
		fmt.Println("Request payload:")
		var prettyJSON bytes.Buffer
		if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
			fmt.Println(prettyJSON.String())
		}
	}

	url := fmt.Sprintf("%s/api/v1/sboms/%s", serverURL, id)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if verbose {
		fmt.Println("Server response:")
		fmt.Println(string(respBody))
	}

	return nil
}

// treeCmd represents the tree command
var treeCmd = &cobra.Command{
	Use:   "tree [sbom-id]",
	Short: "Show the full dependency tree for an SBOM",
	Long:  `Retrieves the merged dependency tree for an SBOM and prints it as indented JSON or writes it to a file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

var outputFile string

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write tree to file (optional)")
}

func runTree(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/sboms/%s/tree", serverURL, args[0])

	body, err := getJSON(url)
	if err != nil {
		return err
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, prettyJSON.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write tree to file: %w", err)
		}
		fmt.Printf("Dependency tree written to: %s\n", outputFile)
		return nil
	}

	fmt.Println(prettyJSON.String())
	return nil
}

// conflictsCmd represents the conflicts command
var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List version conflicts across all imported SBOMs",
	RunE:  runConflicts,
}

func init() {
	rootCmd.AddCommand(conflictsCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	body, err := getJSON(serverURL + "/api/v1/conflicts")
	if err != nil {
		return err
	}

	var conflicts []model.VersionConflict
	if err := json.Unmarshal(body, &conflicts); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Found %d package(s) with version conflicts:\n\n", len(conflicts))
	fmt.Printf("%-40s %s\n", "PACKAGE", "VERSIONS")
	fmt.Println("─────────────────────────────────────────────────────────────────────────")

	for _, conflict := range conflicts {
		fmt.Printf("%-40s %s\n", conflict.Name, strings.Join(conflict.Versions, ", "))
	}

	return nil
}

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend [project-id]",
	Short: "Run the upgrade optimizer for a project",
	Long:  `Retrieves upgrade recommendations, remaining conflicts, and the dependency health score for a project.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/projects/%s/recommendations", serverURL, args[0])

	body, err := getJSON(url)
	if err != nil {
		return err
	}

	var report model.UpgradeReport
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Dependency score: %d/100\n", report.Score)
	fmt.Printf("Conflicts: %d, Recommendations: %d, Low-similarity packages: %d\n\n",
		len(report.Conflicts), len(report.Recommendations), len(report.LowSimilarityPackages))

	if len(report.Recommendations) > 0 {
		fmt.Printf("%-30s %-15s %-15s %s\n", "PACKAGE", "FROM", "TO", "IMPACT")
		fmt.Println("─────────────────────────────────────────────────────────────────────────")
		for _, rec := range report.Recommendations {
			fmt.Printf("%-30s %-15s %-15s %s\n", rec.Name, rec.OldVersion, rec.NewVersion, rec.Impact)
		}
	}

	if verbose {
		var prettyJSON bytes.Buffer
		if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
			fmt.Println()
			fmt.Println(prettyJSON.String())
		}
	}

	return nil
}

func getJSON(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", string(body))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
