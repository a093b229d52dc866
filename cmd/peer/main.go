package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/log"
	"github.com/s-uryansh/convoo/internal/peer"
)

var (
	flagServer   string
	flagRoom     string
	flagUsername string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "convoo-peer",
	Short: "Join a convoo room from the terminal",
	Long: `convoo-peer connects to a convoo coordinator, joins a room, and
negotiates a direct audio link with every other member while relaying chat
to the terminal.`,
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and stay connected until interrupted",
	Example: `  convoo-peer join --room Ab3dE9xQ --username alice
  convoo-peer join --server ws://chat.example.com --room Ab3dE9xQ --username bob`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRoom == "" || flagUsername == "" {
			return fmt.Errorf("--room and --username are required")
		}
		return runJoin()
	},
}

func runJoin() error {
	log.Init(log.Config{Level: flagLogLevel, Pretty: true, ServiceName: "convoo-peer"})

	client := peer.NewSignalingClient()
	if err := client.Connect(flagServer, flagRoom, flagUsername); err != nil {
		return err
	}
	defer client.Close()

	runtime := peer.NewRuntime(flagUsername, client, peer.LoadICEConfig(), func(msg domain.Message) {
		fmt.Printf("[%s] %s: %s\n", msg.SentAt.Local().Format("15:04"), msg.Sender, msg.Text)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	fmt.Printf("joined room %s as %s\n", flagRoom, flagUsername)
	return runtime.Run(ctx)
}

func init() {
	joinCmd.Flags().StringVar(&flagServer, "server", "ws://localhost:8080", "coordinator URL")
	joinCmd.Flags().StringVar(&flagRoom, "room", "", "room ID to join")
	joinCmd.Flags().StringVar(&flagUsername, "username", "", "display name, unique within the room")
	joinCmd.Flags().StringVar(&flagLogLevel, "log-level", "warn", "log level")
	rootCmd.AddCommand(joinCmd)
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
