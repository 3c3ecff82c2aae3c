// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/upnext/internal/api/httpapi"
	"github.com/osa030/upnext/internal/app/notification"
	"github.com/osa030/upnext/internal/app/session"
	"github.com/osa030/upnext/internal/domain/track"
)

var (
	app    = kingpin.New("upnext-ctl", "upnext playback queue control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	statusCmd  = app.Command("status", "Get session status")
	queueCmd   = app.Command("queue", "Show the queue")
	historyCmd = app.Command("history", "Show played tracks")
	watchCmd   = app.Command("watch", "Stream playback events")

	playlistCmd    = app.Command("playlist", "Replace the main queue")
	playlistName   = playlistCmd.Flag("name", "Playlist name").Default("cli").String()
	playlistTracks = playlistCmd.Arg("urls", "Track URLs").Required().Strings()

	addCmd    = app.Command("add", "Play a track after the current one")
	addURL    = addCmd.Arg("url", "Track URL").Required().String()
	addName   = addCmd.Flag("name", "Track name").String()
	addArtist = addCmd.Flag("artist", "Artist name").String()
	addAlbum  = addCmd.Flag("album", "Album name").String()

	playCmd      = app.Command("play", "Start or resume playback")
	playIndex    = playCmd.Arg("index", "Index in the combined queue").Default("-1").Int()
	playMainCmd  = app.Command("play-main", "Play a main queue track")
	playMainIdx  = playMainCmd.Arg("index", "Main queue index").Required().Int()
	playNextCmd  = app.Command("play-next", "Play a next queue track")
	playNextIdx  = playNextCmd.Arg("index", "Next queue index").Required().Int()
	pauseCmd     = app.Command("pause", "Pause playback")
	stopCmd      = app.Command("stop", "Stop playback")
	nextCmd      = app.Command("next", "Skip to the next track").Alias("skip")
	previousCmd  = app.Command("previous", "Go back or restart the current track").Alias("prev")
	reorderCmd   = app.Command("reorder", "Move queued next tracks after the current position")
	seekCmd      = app.Command("seek", "Seek within the current track")
	seekFraction = seekCmd.Arg("fraction", "Position between 0 and 1").Required().Float64()

	shuffleCmd   = app.Command("shuffle", "Set shuffle")
	shuffleState = shuffleCmd.Arg("state", "on or off").Required().Enum("on", "off")
	repeatCmd    = app.Command("repeat", "Set repeat mode")
	repeatMode   = repeatCmd.Arg("mode", "off, all or one").Required().Enum("off", "all", "one")
	muteCmd      = app.Command("mute", "Set mute")
	muteState    = muteCmd.Arg("state", "on or off").Required().Enum("on", "off")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := httpapi.NewClient(*server, *token, nil)
	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		printStatus(check(client.Status(ctx)))
	case queueCmd.FullCommand():
		printQueue(check(client.Queue(ctx)))
	case historyCmd.FullCommand():
		h := check(client.History(ctx))
		fmt.Println("\n=== HISTORY ===")
		printTracks(h.Tracks)
	case watchCmd.FullCommand():
		watch(ctx, client)
	case playlistCmd.FullCommand():
		req := httpapi.PlaylistRequest{Name: *playlistName}
		for _, url := range *playlistTracks {
			req.Tracks = append(req.Tracks, httpapi.TrackRequest{URL: url})
		}
		printStatus(check(client.SetPlaylist(ctx, req)))
	case addCmd.FullCommand():
		printStatus(check(client.AddPlayNext(ctx, httpapi.TrackRequest{
			URL: *addURL, Name: *addName, Artist: *addArtist, Album: *addAlbum,
		})))
	case playCmd.FullCommand():
		action := "play"
		if *playIndex >= 0 {
			action = "play/" + strconv.Itoa(*playIndex)
		}
		printStatus(check(client.Do(ctx, action)))
	case playMainCmd.FullCommand():
		printStatus(check(client.Do(ctx, "play/main/"+strconv.Itoa(*playMainIdx))))
	case playNextCmd.FullCommand():
		printStatus(check(client.Do(ctx, "play/next/"+strconv.Itoa(*playNextIdx))))
	case pauseCmd.FullCommand():
		printStatus(check(client.Do(ctx, "pause")))
	case stopCmd.FullCommand():
		printStatus(check(client.Do(ctx, "stop")))
	case nextCmd.FullCommand():
		printStatus(check(client.Do(ctx, "next")))
	case previousCmd.FullCommand():
		printStatus(check(client.Do(ctx, "previous")))
	case reorderCmd.FullCommand():
		printStatus(check(client.Do(ctx, "reorder")))
	case seekCmd.FullCommand():
		printStatus(check(client.Seek(ctx, *seekFraction)))
	case shuffleCmd.FullCommand():
		printStatus(check(client.SetShuffle(ctx, *shuffleState == "on")))
	case repeatCmd.FullCommand():
		printStatus(check(client.SetRepeat(ctx, *repeatMode)))
	case muteCmd.FullCommand():
		printStatus(check(client.SetMute(ctx, *muteState == "on")))
	}
}

func check[T any](v T, err error) T {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return v
}

func printStatus(s *session.Status) {
	fmt.Println("\n=== CURRENT SESSION STATUS ===")
	fmt.Printf("Session ID: %s (%s)\n", s.Session.SessionID, s.Session.Phase)
	if s.Session.PlaylistName != "" {
		fmt.Printf("Playlist: %s\n", s.Session.PlaylistName)
	}
	fmt.Printf("State: %s\n", s.State)
	fmt.Printf("Playing: %v  Muted: %v  Shuffle: %v  Repeat: %s\n", s.Playing, s.Muted, s.Shuffle, s.Repeat)
	fmt.Printf("Queue Size: %d (next: %d)\n", s.QueueSize, s.NextCount)
	fmt.Printf("History: %d\n", s.HistorySize)
	fmt.Printf("Subscribers: %d\n", s.Subscribers)

	if s.CurrentTrack != nil {
		fmt.Printf("\nCurrently Playing:\n")
		fmt.Printf("  Index: %d\n", s.CurrentIndex)
		printTrack("  ", *s.CurrentTrack)
		fmt.Printf("  Position: %.0f / %.0f seconds\n", s.PositionSeconds, s.DurationSeconds)
	} else {
		fmt.Println("\nNo track currently playing")
	}
	fmt.Println()
}

func printQueue(q *httpapi.QueueResponse) {
	fmt.Println("\n=== UP NEXT ===")
	printTracks(q.UpcomingNext)
	fmt.Println("\n=== QUEUE ===")
	printTracks(q.All)
	fmt.Println()
}

func printTracks(tracks []track.Track) {
	if len(tracks) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i, t := range tracks {
		played := " "
		if t.Played {
			played = "*"
		}
		fmt.Printf("  %s %3d. [%s] %s", played, i, t.Origin, t.Name)
		if t.Artist != "" {
			fmt.Printf(" - %s", t.Artist)
		}
		fmt.Println()
	}
}

func printTrack(indent string, t track.Track) {
	fmt.Printf("%sTrack ID: %s\n", indent, t.ID)
	fmt.Printf("%sName: %s\n", indent, t.Name)
	fmt.Printf("%sArtist: %s\n", indent, t.Artist)
	fmt.Printf("%sAlbum: %s\n", indent, t.Album)
	fmt.Printf("%sURL: %s\n", indent, t.URL)
	fmt.Printf("%sQueue: %s\n", indent, t.Origin)
}

func watch(ctx context.Context, client *httpapi.Client) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := client.Watch(ctx, func(n *notification.Notification) {
		line := fmt.Sprintf("[%d] %s %s state=%s", n.SequenceNo, n.Timestamp.Format("15:04:05"), n.Type, n.State)
		if n.Track != nil {
			line += " track=" + n.Track.Name
		}
		if n.Seconds > 0 {
			line += fmt.Sprintf(" seconds=%.1f", n.Seconds)
		}
		fmt.Println(line)
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
