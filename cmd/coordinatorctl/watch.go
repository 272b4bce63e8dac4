package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/transport/ws"
)

var (
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the reviewer feed",
		RunE:  watchFeed,
	}

	watchReviewer string
	watchSubjects []string
	watchTypes    []string
)

func init() {
	watchCmd.Flags().StringVar(&watchReviewer, "reviewer", getEnvOrDefault("COORDINATOR_REVIEWER", ""), "Only events addressed to this reviewer")
	watchCmd.Flags().StringSliceVar(&watchSubjects, "subject", nil, "Only events about these approval or evolution ids")
	watchCmd.Flags().StringSliceVar(&watchTypes, "type", nil, "Only these event types")
}

func watchFeed(cmd *cobra.Command, args []string) error {
	feedURL, err := NewClient(apiURL).FeedURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(feedURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", feedURL, err)
	}
	defer conn.Close()

	sub := ws.SubscribeMessage{
		BaseMessage: ws.BaseMessage{Type: ws.TypeSubscribe, Ts: time.Now().UnixMilli()},
		APIKey:      apiKey,
		Reviewer:    watchReviewer,
		SubjectIDs:  watchSubjects,
	}
	for _, t := range watchTypes {
		sub.EventTypes = append(sub.EventTypes, domain.EventType(t))
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	errc := make(chan error, 1)
	go func() {
		errc <- readFeed(conn, cmd.OutOrStdout())
	}()

	select {
	case err := <-errc:
		return err
	case <-interrupt:
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	}
}

// readFeed prints feed messages until the connection closes.
func readFeed(conn *websocket.Conn, out io.Writer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		if err := printFeedMessage(out, data); err != nil {
			return err
		}
	}
}

func printFeedMessage(out io.Writer, data []byte) error {
	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("invalid feed message: %w", err)
	}
	if outputFormat == "json" {
		fmt.Fprintln(out, string(data))
		return nil
	}

	switch base.Type {
	case ws.TypeSubscribed:
		var msg ws.SubscribedMessage
		_ = json.Unmarshal(data, &msg)
		fmt.Fprintf(out, "subscribed (connection %s)\n", msg.ConnectionID)
	case ws.TypeEvent:
		var msg ws.EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("invalid event message: %w", err)
		}
		e := msg.Event
		fmt.Fprintf(out, "%s  %-28s %s", e.Time().Format(time.RFC3339), e.Type, e.SubjectID)
		if e.Actor != "" {
			fmt.Fprintf(out, " by %s", e.Actor)
		}
		fmt.Fprintln(out)
	case ws.TypeError:
		var msg ws.ErrorMessage
		_ = json.Unmarshal(data, &msg)
		return fmt.Errorf("feed error: %s - %s", msg.Code, msg.Message)
	}
	return nil
}
