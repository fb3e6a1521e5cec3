package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	ghclient "github.com/gitguide/gitguide-backend/internal/clients/github"
	"github.com/gitguide/gitguide-backend/internal/learningpath"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/repos"
	"github.com/gitguide/gitguide-backend/internal/types"
	"github.com/gitguide/gitguide-backend/internal/utils"
)

// ChatReply pairs the persisted user message with the assistant's answer.
type ChatReply struct {
	UserMessage      *types.ChatMessage `json:"user_message"`
	AssistantMessage *types.ChatMessage `json:"assistant_message"`
}

type ChatService interface {
	Send(ctx context.Context, userID, projectID uuid.UUID, message string) (*ChatReply, error)
	History(ctx context.Context, userID, projectID uuid.UUID, limit int) ([]*types.ChatMessage, error)
}

type chatService struct {
	db          *gorm.DB
	log         *logger.Logger
	projects    ProjectService
	conceptRepo repos.ConceptRepo
	messageRepo repos.ChatMessageRepo
	gh          *ghclient.Client
	llm         LLMClient

	replyTimeout time.Duration
}

func NewChatService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projects ProjectService,
	conceptRepo repos.ConceptRepo,
	messageRepo repos.ChatMessageRepo,
	gh *ghclient.Client,
	llm LLMClient,
) ChatService {
	log := baseLog.With("service", "ChatService")
	return &chatService{
		db:           db,
		log:          log,
		projects:     projects,
		conceptRepo:  conceptRepo,
		messageRepo:  messageRepo,
		gh:           gh,
		llm:          llm,
		replyTimeout: time.Duration(utils.GetEnvAsInt("CHAT_REPLY_TIMEOUT_SECONDS", 60, log)) * time.Second,
	}
}

func (s *chatService) Send(ctx context.Context, userID, projectID uuid.UUID, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.New(apperr.CodeValidation, "message is required")
	}

	project, err := s.projects.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return nil, err
	}

	concepts, err := s.conceptRepo.GetTreeByProjectID(ctx, nil, project.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load learning path", err)
	}

	// Repository files are best-effort context; the tutor still answers from
	// project metadata and the path when the fetch fails.
	var files []learningpath.ContextFile
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	snapshot, fErr := s.gh.Fetch(fetchCtx, project.RepoURL)
	cancel()
	if fErr != nil {
		s.log.Warn("chat context fetch failed", "project_id", project.ID, "error", fErr)
	} else {
		for _, f := range snapshot.Files {
			files = append(files, learningpath.ContextFile{Path: f.Path, Content: f.Content})
		}
	}

	contextText := learningpath.BuildChatContext(project, concepts, files)
	system, user := BuildChatPrompt(contextText, message)

	replyCtx, cancelReply := context.WithTimeout(ctx, s.replyTimeout)
	answer, err := s.llm.Chat(replyCtx, system, user)
	cancelReply()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "tutor reply failed", err)
	}

	userMsg := &types.ChatMessage{
		ProjectID: project.ID,
		UserID:    userID,
		Role:      types.ChatRoleUser,
		Content:   message,
	}
	assistantMsg := &types.ChatMessage{
		ProjectID: project.ID,
		UserID:    userID,
		Role:      types.ChatRoleAssistant,
		Content:   strings.TrimSpace(answer),
	}
	if _, err := s.messageRepo.Create(ctx, nil, []*types.ChatMessage{userMsg, assistantMsg}); err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to persist chat messages", err)
	}

	return &ChatReply{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *chatService) History(ctx context.Context, userID, projectID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	project, err := s.projects.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListByProjectID(ctx, nil, project.ID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load chat history", err)
	}
	return messages, nil
}
