package dispatcher

import "stock-chatbot/src/models"

// Menu screens
const (
	mainMenuText = "📱 주식 봇 메인 메뉴\n\n" +
		"1️⃣ 종목 검색\n" +
		"2️⃣ 시장 정보\n" +
		"3️⃣ 포트폴리오\n" +
		"4️⃣ 알림/모니터링\n" +
		"5️⃣ 사용 예시\n\n" +
		"번호를 입력하세요."

	stockSearchMenuText = "🔍 종목 검색\n\n" +
		"1️⃣ 키워드로 검색\n" +
		"2️⃣ 조회 가능 종목 목록\n" +
		"3️⃣ 종목 코드로 조회\n\n" +
		"0️⃣ 메인 메뉴로"

	marketInfoMenuText = "📊 시장 정보\n\n" +
		"1️⃣ 코스피/코스닥 지수\n" +
		"2️⃣ 인기 검색 종목\n\n" +
		"0️⃣ 메인 메뉴로"

	portfolioMenuText = "💼 포트폴리오\n\n" +
		"1️⃣ 내 포트폴리오 보기\n" +
		"2️⃣ 종목 추가\n" +
		"3️⃣ 종목 삭제\n\n" +
		"0️⃣ 메인 메뉴로"

	alertMonitorMenuText = "🔔 알림/모니터링\n\n" +
		"1️⃣ 가격 변동 알림 설정\n" +
		"2️⃣ 연속 모니터링 시작\n" +
		"3️⃣ 내 현황\n" +
		"4️⃣ 알림/모니터링 중지\n\n" +
		"0️⃣ 메인 메뉴로"

	examplesMenuText = "💡 사용 예시\n\n" +
		"/search 현대 → 현대 관련 종목 검색\n" +
		"/stock 삼성전자 → 시세 조회\n" +
		"/stocks 삼성전자,카카오 → 여러 종목 조회\n" +
		"/code 005930 → 종목 코드로 조회\n" +
		"/add 카카오 50000 5 → 포트폴리오 추가\n" +
		"/alert 네이버 → 가격 변동 알림\n" +
		"/monitor 삼성전자 → 주기적 모니터링\n\n" +
		"0️⃣ 메인 메뉴로"
)

// Prompts
const (
	keywordPromptText = "🔍 검색할 키워드를 입력하세요.\n예: 현대, 삼성\n\n0️⃣ 메인 메뉴로"
	codePromptText    = "🔢 6자리 종목 코드를 입력하세요.\n예: 005930\n\n0️⃣ 메인 메뉴로"
	addPromptText     = "➕ 추가할 종목을 입력하세요.\n형식: 종목명 매수가 수량\n예: 삼성전자 71000 10\n\n0️⃣ 메인 메뉴로"
	removePromptText  = "➖ 삭제할 종목명을 입력하세요.\n예: 삼성전자\n\n0️⃣ 메인 메뉴로"
	alertPromptText   = "🔔 알림을 받을 종목명을 입력하세요.\n예: 삼성전자\n\n0️⃣ 메인 메뉴로"
	monitorPromptText = "🔄 모니터링할 종목명을 입력하세요.\n예: 삼성전자\n\n0️⃣ 메인 메뉴로"
)

// Fixed responses
const (
	backText         = "🔙 메인 메뉴로 돌아갑니다."
	invalidInputText = "❌ 잘못된 입력입니다. 메뉴 번호를 다시 확인하세요.\n\n0️⃣ 메인 메뉴로"
	unknownText      = "❓ 알 수 없는 명령어입니다.\n/help를 입력하여 사용법을 확인하세요."
	refusalText      = "❌ 이 명령어는 개발자만 사용할 수 있습니다."
	codeFormatText   = "❌ 6자리 종목 코드를 입력하세요.\n예: 005930\n\n0️⃣ 메인 메뉴로"
	nothingRunning   = "❌ 실행 중인 모니터링이나 알림이 없습니다."
	cliDisabledText  = "❌ CLI 기능이 비활성화되어 있습니다."

	noResultsText = "❌ 검색 결과가 없습니다.\n\n" +
		"💡 먼저 /search 명령어로 종목을 검색하세요.\n" +
		"예: /search 현대\n\n" +
		"검색 결과는 5분간 유지됩니다."

	addFormatText = "❌ 형식이 올바르지 않습니다.\n\n" +
		"사용법: /add <종목명> <매수가> <수량>\n" +
		"예: /add 삼성전자 71000 10"

	addNumberText = "❌ 매수가와 수량은 숫자여야 합니다.\n" +
		"예: /add 삼성전자 71000 10"

	helpText = "📱 텔레그램 주식 봇\n\n" +
		"🔍 종목 검색\n" +
		"/search <키워드> - 종목 검색 (부분검색 가능)\n" +
		"/stock <종목명> - 주식 현재가 조회\n" +
		"/stocks <종목1,종목2> - 여러 종목 조회\n" +
		"/code <종목코드> - 코드로 조회\n" +
		"/list - 조회 가능한 종목\n\n" +
		"📊 시장 정보\n" +
		"/market - 코스피/코스닥 지수\n" +
		"/popular - 인기 검색 종목\n\n" +
		"💼 포트폴리오\n" +
		"/add <종목명> <매수가> <수량> - 주식 추가\n" +
		"/remove <종목명> - 주식 삭제\n" +
		"/portfolio - 내 포트폴리오\n\n" +
		"🔔 알림/모니터링\n" +
		"/alert <종목명> - 가격 변동 알림\n" +
		"/monitor <종목명> - 주기적 모니터링\n" +
		"/stop - 알림/모니터링 중지\n" +
		"/status - 현재 상태\n\n" +
		"📂 메뉴\n" +
		"/start - 번호로 이동하는 메뉴\n\n" +
		"💡 사용 예시\n" +
		"/search 현대 → 현대 관련 종목 검색\n" +
		"/stock 삼성전자 → 시세 조회\n" +
		"/add 카카오 50000 5 → 포트폴리오 추가"
)

// usage is shown when a prefix command arrives without its argument
var usage = map[string]string{
	"/cli":     "사용법: /cli <명령어>\n예: /cli uptime",
	"/search":  "사용법: /search <키워드>\n예: /search 현대",
	"/find":    "사용법: /find <키워드>\n예: /find 현대",
	"/code":    "사용법: /code <종목코드>\n예: /code 005930",
	"/stock":   "사용법: /stock <종목명>\n예: /stock 삼성전자",
	"/주식":      "사용법: /주식 <종목명>\n예: /주식 삼성전자",
	"/stocks":  "사용법: /stocks <종목1,종목2,...>\n예: /stocks 삼성전자,카카오,네이버",
	"/add":     addFormatText,
	"/remove":  "사용법: /remove <종목명>\n예: /remove 삼성전자",
	"/alert":   "사용법: /alert <종목명>\n예: /alert 삼성전자",
	"/monitor": "사용법: /monitor <종목명>\n예: /monitor 삼성전자",
}

// levelMenu is the screen shown at the top of each level
func levelMenu(level models.MenuLevel) string {
	switch level {
	case models.LevelStockSearch:
		return stockSearchMenuText
	case models.LevelMarketInfo:
		return marketInfoMenuText
	case models.LevelPortfolio:
		return portfolioMenuText
	case models.LevelAlertMonitor:
		return alertMonitorMenuText
	case models.LevelHelp:
		return examplesMenuText
	}
	return mainMenuText
}
