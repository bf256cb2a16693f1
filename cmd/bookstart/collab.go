package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/collab"
	"github.com/spf13/cobra"
)

func newCollabCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collab",
		Short: "Manage collaborators and their comments",
	}
	cmd.AddCommand(newCollabUserCmd(a), newCollabCommentCmd(a))
	return cmd
}

func (a *app) collab() (*collab.Manager, error) {
	p, err := a.open()
	if err != nil {
		return nil, err
	}
	return collab.New(p), nil
}

func newCollabUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Add or list collaborators",
	}

	var u book.User
	var role string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a collaborator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.collab()
			if err != nil {
				return err
			}
			u.Name = args[0]
			u.Role = book.Role(role)
			if err := m.AddUser(u); err != nil {
				return err
			}
			a.printf("added %s\n", u.Name)
			return nil
		},
	}
	add.Flags().StringVar(&u.Email, "email", "", "email address")
	add.Flags().StringVar(&role, "role", string(book.RoleAuthor), "author, editor or reviewer")

	list := &cobra.Command{
		Use:   "list",
		Short: "List collaborators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.collab()
			if err != nil {
				return err
			}
			users, err := m.Users()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tROLE\tEMAIL")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Name, u.Role, u.Email)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newCollabCommentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Add, list and resolve comments",
	}

	var (
		author  string
		chapter int
	)
	add := &cobra.Command{
		Use:   "add <text>",
		Short: "Comment on the book or on a chapter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.collab()
			if err != nil {
				return err
			}
			c, err := m.AddComment(author, chapter, strings.Join(args, " "))
			if err != nil {
				return err
			}
			a.printf("comment %s added\n", c.ID)
			return nil
		},
	}
	add.Flags().StringVar(&author, "author", "", "name of a collaborator")
	add.Flags().IntVar(&chapter, "chapter", 0, "chapter number, 0 for the whole book")
	_ = add.MarkFlagRequired("author")

	var listChapter int
	list := &cobra.Command{
		Use:   "list",
		Short: "List comments, unresolved first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.collab()
			if err != nil {
				return err
			}
			comments, err := m.Comments(listChapter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCHAPTER\tAUTHOR\tRESOLVED\tCOMMENT")
			for _, c := range comments {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%t\t%s\n", c.ID, c.Chapter, c.Author, c.Resolved, c.Body)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&listChapter, "chapter", -1, "only this chapter, 0 for book level comments")

	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a comment as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.collab()
			if err != nil {
				return err
			}
			c, err := m.Resolve(args[0])
			if err != nil {
				return err
			}
			a.printf("resolved %s\n", c.ID)
			return nil
		},
	}

	cmd.AddCommand(add, list, resolve)
	return cmd
}
