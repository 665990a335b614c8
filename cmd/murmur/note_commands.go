package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"murmur/internal/daemon"
	"murmur/internal/notes"
)

func newNoteCommand(ctx *commandContext) *cobra.Command {
	noteCmd := &cobra.Command{
		Use:   "note",
		Short: "Manage voice notes",
	}
	noteCmd.AddCommand(newNoteAddCommand(ctx))
	noteCmd.AddCommand(newNoteListCommand(ctx))
	noteCmd.AddCommand(newNoteShowCommand(ctx))
	noteCmd.AddCommand(newNoteRewriteCommand(ctx))
	noteCmd.AddCommand(newNoteTranscribeCommand(ctx))
	noteCmd.AddCommand(newNoteSyncCommand(ctx))
	return noteCmd
}

func newNoteAddCommand(ctx *commandContext) *cobra.Command {
	var language string
	var duration float64

	cmd := &cobra.Command{
		Use:   "add <audio-file>",
		Short: "Store a recorded voice note and mark it for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read audio file: %w", err)
			}
			if len(audio) == 0 {
				return fmt.Errorf("audio file %s is empty", args[0])
			}
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				note := &notes.Note{
					ID:              notes.NewID(),
					Language:        strings.TrimSpace(language),
					DurationSeconds: duration,
				}
				if err := d.Notes().Save(cmd.Context(), note); err != nil {
					return err
				}
				if err := d.Notes().SaveAudio(cmd.Context(), note.ID, audio); err != nil {
					return err
				}
				if err := d.Reconciler().MarkPending(cmd.Context(), note.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored note %s (%d bytes of audio), pending transcription\n",
					note.ID, len(audio))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Spoken language hint (e.g. en)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Recording length in seconds")
	return cmd
}

func newNoteListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored notes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				all, err := d.Notes().List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(all) == 0 {
					fmt.Fprintln(out, "No notes stored")
					return nil
				}

				pending, err := d.Reconciler().PendingIDs(cmd.Context())
				if err != nil {
					return err
				}
				pendingSet := make(map[string]bool, len(pending))
				for _, id := range pending {
					pendingSet[id] = true
				}

				rows := make([][]string, 0, len(all))
				for _, note := range all {
					rows = append(rows, []string{
						note.ID,
						note.Title,
						note.CreatedAt.Local().Format("2006-01-02 15:04"),
						yesNo(strings.TrimSpace(note.Transcript) != ""),
						yesNo(pendingSet[note.ID]),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Created", "Transcribed", "Pending"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
}

func newNoteShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <note-id>",
		Short: "Show one note in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				note, err := d.Notes().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if note == nil {
					return fmt.Errorf("note %s not found", args[0])
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", note.ID)
				fmt.Fprintf(out, "Title:       %s\n", note.Title)
				fmt.Fprintf(out, "Created:     %s\n", note.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "Language:    %s\n", note.Language)
				if note.DurationSeconds > 0 {
					fmt.Fprintf(out, "Duration:    %ss\n", strconv.FormatFloat(note.DurationSeconds, 'f', -1, 64))
				}
				if note.Description != "" {
					fmt.Fprintf(out, "Description: %s\n", note.Description)
				}
				if len(note.Keywords) > 0 {
					fmt.Fprintf(out, "Keywords:    %s\n", strings.Join(note.Keywords, ", "))
				}
				if note.Transcript != "" {
					fmt.Fprintf(out, "\nTranscript:\n%s\n", note.Transcript)
				}
				if note.Body != "" {
					fmt.Fprintf(out, "\nBody:\n%s\n", note.Body)
				}
				return nil
			})
		},
	}
}

func newNoteRewriteCommand(ctx *commandContext) *cobra.Command {
	var instruction string

	cmd := &cobra.Command{
		Use:   "rewrite <note-id>",
		Short: "Queue a rewrite of a note's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(instruction) == "" {
				return fmt.Errorf("an --instruction is required")
			}
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				note, err := d.Notes().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if note == nil {
					return fmt.Errorf("note %s not found", args[0])
				}
				id, err := d.Queue().EnqueueRewrite(cmd.Context(), note.ID, instruction)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued rewrite %s for note %s\n", id, note.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "How the text should be rewritten")
	return cmd
}

func newNoteTranscribeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <note-id>",
		Short: "Queue a transcription of a note's stored audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				note, err := d.Notes().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if note == nil {
					return fmt.Errorf("note %s not found", args[0])
				}
				id, err := d.Queue().EnqueueTranscription(cmd.Context(), note.ID, note.Language)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued transcription %s for note %s\n", id, note.ID)
				return nil
			})
		},
	}
	return cmd
}

func newNoteSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Transcribe and enrich all pending notes now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				out := cmd.OutOrStdout()
				processed := 0
				err := d.Reconciler().ProcessPending(cmd.Context(), func(noteID string) {
					processed++
					fmt.Fprintf(out, "Transcribed note %s\n", noteID)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Processed %d pending note(s)\n", processed)
				return nil
			})
		},
	}
}
