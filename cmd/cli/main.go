package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/anventec/dlpal/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "dlpal",
		Short: "dlpal CLI - Download and merge videos",
		Long:  `A command-line interface for resolving video metadata, downloading selected streams and merging them into a single file.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [url]",
	Short: "Resolve video metadata and list available formats",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		meta, err := resolveMetadata(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Title: %s\n", meta.Title)
		fmt.Printf("ID:    %s\n", meta.ID)
		if meta.ThumbnailURL != "" {
			fmt.Printf("Thumb: %s\n", meta.ThumbnailURL)
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tFORMAT ID\tLABEL")
		for _, f := range meta.Formats.Video {
			fmt.Fprintf(w, "video\t%s\t%s\n", f.ID, f.Label)
		}
		for _, f := range meta.Formats.Audio {
			fmt.Fprintf(w, "audio\t%s\t%s\n", f.ID, f.Label)
		}
		w.Flush()
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download a video and follow its progress",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		videoFormat, _ := cmd.Flags().GetString("video-format")
		audioFormat, _ := cmd.Flags().GetString("audio-format")
		noVideo, _ := cmd.Flags().GetBool("no-video")
		noAudio, _ := cmd.Flags().GetBool("no-audio")
		noMerge, _ := cmd.Flags().GetBool("no-merge")
		keep, _ := cmd.Flags().GetBool("keep")
		dir, _ := cmd.Flags().GetString("dir")

		meta, err := resolveMetadata(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		req := domain.DownloadRequest{
			VideoID:        meta.ID,
			Title:          meta.Title,
			DestinationDir: dir,
			WantVideo:      !noVideo,
			WantAudio:      !noAudio,
			Merge:          !noMerge,
			KeepFiles:      keep,
		}
		if req.WantVideo {
			req.VideoFormatID = videoFormat
			if req.VideoFormatID == "" {
				def, ok := meta.Formats.Video.Default()
				if !ok {
					fmt.Fprintln(os.Stderr, "Error: no video formats available")
					os.Exit(1)
				}
				req.VideoFormatID = def.ID
			}
		}
		if req.WantAudio {
			req.AudioFormatID = audioFormat
			if req.AudioFormatID == "" {
				def, ok := meta.Formats.Audio.Default()
				if !ok {
					fmt.Fprintln(os.Stderr, "Error: no audio formats available")
					os.Exit(1)
				}
				req.AudioFormatID = def.ID
			}
		}
		if req.DestinationDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			req.DestinationDir = home + "/Downloads"
		}

		// Attach the progress stream before starting so no event is missed.
		conn, err := dialProgress()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()

		data, _ := json.Marshal(req)
		resp, err := http.Post(serverURL+"/api/v1/session", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		fmt.Printf("Downloading: %s\n", meta.Title)
		if err := followProgress(conn); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear resolved metadata",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		req, _ := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/session", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}
		fmt.Println("Session reset")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent download sessions",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		url := serverURL + "/api/v1/history"
		if limit > 0 {
			url += fmt.Sprintf("?limit=%d", limit)
		}

		resp, err := http.Get(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var records []domain.HistoryRecord
		json.Unmarshal(body, &records)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCREATED\tOUTPUT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(r.ID, 8),
				truncate(r.Title, 40),
				r.Status,
				r.CreatedAt.Format("2006-01-02 15:04"),
				r.OutputPath)
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session history statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/history/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats domain.HistoryStats
		json.Unmarshal(body, &stats)

		fmt.Println("Session Statistics:")
		fmt.Printf("  Total:     %d\n", stats.Total)
		fmt.Printf("  Completed: %d\n", stats.Completed)
		fmt.Printf("  Failed:    %d\n", stats.Failed)
	},
}

func init() {
	downloadCmd.Flags().String("video-format", "", "Video format id (default: best available)")
	downloadCmd.Flags().String("audio-format", "", "Audio format id (default: best available)")
	downloadCmd.Flags().Bool("no-video", false, "Skip the video stream")
	downloadCmd.Flags().Bool("no-audio", false, "Skip the audio stream")
	downloadCmd.Flags().Bool("no-merge", false, "Keep streams as separate files")
	downloadCmd.Flags().Bool("keep", false, "Keep source streams after merging")
	downloadCmd.Flags().StringP("dir", "d", "", "Destination directory (default: ~/Downloads)")
	historyCmd.Flags().IntP("limit", "n", 0, "Maximum number of records")
}

// resolveMetadata asks the server to resolve a URL into video metadata.
func resolveMetadata(url string) (*domain.VideoMetadata, error) {
	payload, _ := json.Marshal(map[string]string{"url": url})
	resp, err := http.Post(serverURL+"/api/v1/metadata", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s", apiErr.Error)
		}
		return nil, fmt.Errorf("%s", string(body))
	}

	var meta domain.VideoMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// dialProgress opens the WebSocket progress subscription.
func dialProgress() (*websocket.Conn, error) {
	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/api/v1/session/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	return conn, err
}

// progressFrame covers both progress events and the terminal frame.
type progressFrame struct {
	Finished bool    `json:"finished"`
	Error    string  `json:"error"`
	Phase    string  `json:"phase"`
	Percent  float64 `json:"percent"`
	Label    string  `json:"label"`
}

// followProgress renders events from the stream until the terminal frame.
func followProgress(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("progress stream closed: %w", err)
		}

		var frame progressFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		if frame.Finished {
			fmt.Println()
			if frame.Error != "" {
				return fmt.Errorf("%s", frame.Error)
			}
			fmt.Println("Done")
			return nil
		}

		fmt.Printf("\r%-60s", fmt.Sprintf("[%s] %s %.1f%%", frame.Phase, frame.Label, frame.Percent))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
